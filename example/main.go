package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/pipeplot"
)

func main() {
	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// feed a mock sensor through a pipe (see mock_sensor.go)
	pr, pw := io.Pipe()
	go StartMockSensor(ctx, pw, 50*time.Millisecond)

	set, err := pipeplot.NewMatcherSet(
		`T=(-?\d+\.?\d*)`,
		`H=(\d+)`,
		pipeplot.DefaultPattern,
	)
	if err != nil {
		slog.Error("failed to compile patterns", "error", err)
		os.Exit(1)
	}

	var spikes int
	p, err := pipeplot.New(
		pipeplot.WithInput(pr),
		pipeplot.WithMatchers(set.WithNames("temperature", "humidity", "load")),
		pipeplot.WithWindow(10*time.Second),
		pipeplot.WithPort(8080),
		pipeplot.WithTitle("Mock sensor"),
		pipeplot.WithReadingCallback(func(r pipeplot.Reading) {
			if r.Name == "load" && r.Value > 0.85 {
				spikes++
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create plotter", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  pipeplot demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println("  Channels: temperature, humidity, load")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	if err := p.Start(ctx); err != nil {
		slog.Error("pipeplot error", "error", err)
		os.Exit(1)
	}

	fmt.Printf("load spikes seen: %d\n", spikes)
}
