package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// StartMockSensor writes lines like a bench sensor would print them over a
// serial port until ctx is cancelled, then closes w.
//
//	T=21.43 H=40 load=$0.31$
//
// Temperature follows a random walk, humidity drifts slowly and load is a
// noisy sine. Lines are written in small irregular pieces so tokens are
// routinely split across reads.
func StartMockSensor(ctx context.Context, w io.WriteCloser, interval time.Duration) {
	defer func() { _ = w.Close() }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	temp, humidity := 21.0, 40.0
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		temp += rand.NormFloat64() * 0.2
		humidity = math.Max(0, math.Min(100, humidity+rand.NormFloat64()*0.5))
		load := 0.5 + 0.4*math.Sin(time.Since(start).Seconds()) + rand.Float64()*0.05

		line := fmt.Sprintf("T=%.2f H=%d load=$%.2f$\n", temp, int(humidity), load)
		for len(line) > 0 {
			n := 1 + rand.Intn(len(line))
			if _, err := io.WriteString(w, line[:n]); err != nil {
				slog.Debug("mock sensor stopped", "error", err)
				return
			}
			line = line[n:]
		}
	}
}
