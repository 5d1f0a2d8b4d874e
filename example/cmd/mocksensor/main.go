// Standalone mock sensor for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mocksensor | go run ./cmd/pipeplot run -c example/pipeplot.yaml
package main

import (
	"bufio"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	temp, humidity := 21.0, 40.0
	start := time.Now()

	for {
		select {
		case <-sig:
			return
		case <-ticker.C:
		}

		temp += rand.NormFloat64() * 0.2
		humidity = math.Max(0, math.Min(100, humidity+rand.NormFloat64()*0.5))
		load := 0.5 + 0.4*math.Sin(time.Since(start).Seconds())

		fmt.Fprintf(out, "T=%.2f H=%d load=$%.2f$\n", temp, int(humidity), load)
		if err := out.Flush(); err != nil {
			// reader went away
			return
		}
	}
}
