package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbHall/coldguard/pkg/models"
	"go.uber.org/zap"
)

type simulateOptions struct {
	URL      string
	Count    int
	Interval time.Duration
	Min      float64
	Max      float64
}

// runSimulate posts random readings to a running server and logs each decision.
func runSimulate(args []string) int {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	opts := simulateOptions{}
	fs.StringVar(&opts.URL, "url", "http://127.0.0.1:8000/predict", "evaluate endpoint")
	fs.IntVar(&opts.Count, "count", 20, "number of readings to send")
	fs.DurationVar(&opts.Interval, "interval", 5*time.Second, "delay between readings")
	fs.Float64Var(&opts.Min, "min", -28, "lowest simulated temperature")
	fs.Float64Var(&opts.Max, "max", -10, "highest simulated temperature")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if opts.Min > opts.Max {
		fmt.Fprintf(os.Stderr, "--min %.2f is above --max %.2f\n", opts.Min, opts.Max)
		return 2
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: 10 * time.Second}
	if err := simulate(ctx, client, opts, logger); err != nil {
		logger.Error("simulation aborted", zap.Error(err))
		return 1
	}
	return 0
}

func simulate(ctx context.Context, client *http.Client, opts simulateOptions, logger *zap.Logger) error {
	logger.Info("starting simulation",
		zap.String("url", opts.URL),
		zap.Int("count", opts.Count),
		zap.Duration("interval", opts.Interval),
	)
	for i := 0; i < opts.Count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(opts.Interval):
			}
		}

		temp := randomReading(opts.Min, opts.Max)
		result, status, err := postReading(ctx, client, opts.URL, temp)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			logger.Warn("reading rejected", zap.Float64("temperature", temp), zap.Int("status", status))
			continue
		}
		logger.Info("reading evaluated",
			zap.Int("n", i+1),
			zap.Float64("temperature", temp),
			zap.Float64("reconstruction_error", result.ReconstructionError),
			zap.Bool("bounds_breach", result.BoundsBreach),
			zap.Bool("persistence_alert", result.PersistenceAlert),
			zap.Bool("hybrid_alert", result.HybridAlert),
		)
	}
	return nil
}

// randomReading draws uniformly from [lo, hi] at two-decimal precision.
func randomReading(lo, hi float64) float64 {
	return math.Round((lo+rand.Float64()*(hi-lo))*100) / 100
}

func postReading(ctx context.Context, client *http.Client, url string, temp float64) (models.HybridResult, int, error) {
	var result models.HybridResult
	body, err := json.Marshal(models.ReadingRequest{Temperature: &temp})
	if err != nil {
		return result, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return result, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return result, 0, fmt.Errorf("post reading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return result, resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, resp.StatusCode, fmt.Errorf("decode result: %w", err)
	}
	return result, resp.StatusCode, nil
}
