package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/planetforge/engine/internal/streamsim"
	"github.com/planetforge/engine/pkg/logger"
)

// Default configuration constants.
const (
	defaultUsers          = 10
	defaultSamplesPerUser = 50
	defaultSampleInterval = 20 * time.Millisecond
	defaultTimeout        = 10 * time.Second
	defaultRunTimeout     = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users    = flag.Int("users", defaultUsers, "Number of concurrent simulated users")
		samples  = flag.Int("samples", defaultSamplesPerUser, "Samples streamed per user")
		interval = flag.Duration("interval", defaultSampleInterval, "Pause between samples per connection")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &streamsim.Config{
		BaseURL:        *baseURL,
		Users:          *users,
		SamplesPerUser: *samples,
		SampleInterval: *interval,
		Timeout:        *timeout,
		Verbose:        *verbose,
	}

	if err := streamsim.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
