// Package streamsim generates synthetic behavioral telemetry and drives it
// through the WebSocket ingestion path, then verifies the resulting planets
// over the REST API.
package streamsim

import (
	"sync"
	"time"
)

// Config controls a simulation run.
type Config struct {
	// BaseURL is the HTTP base of the target service, e.g. http://localhost:9080.
	BaseURL string

	// Users is the number of concurrent simulated developers.
	Users int

	// SamplesPerUser is how many code_stream samples each user sends.
	SamplesPerUser int

	// SampleInterval is the pause between samples on one connection.
	SampleInterval time.Duration

	// Timeout bounds individual HTTP calls during verification.
	Timeout time.Duration

	// Verbose enables per-message logging.
	Verbose bool
}

// Stats accumulates counters across all simulated users.
type Stats struct {
	mu sync.Mutex

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	SessionsStarted int
	SamplesSent     int
	UpdatesReceived int
	StageChanges    int
	Achievements    int
	Errors          int
}

func (s *Stats) add(fn func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}
