package streamsim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/planetforge/engine/pkg/logger"
)

// persistenceSettle gives the async pipeline time to flush before verification.
const persistenceSettle = 2 * time.Second

// Run executes the complete simulation: one session per simulated user,
// streamed concurrently, followed by REST verification.
func Run(ctx context.Context, cfg *Config) error {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting stream simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("samplesPerUser", cfg.SamplesPerUser),
		logger.Duration("sampleInterval", cfg.SampleInterval),
	)

	if err := checkServiceHealth(ctx, cfg); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	userIDs := make([]string, cfg.Users)
	for i := range userIDs {
		userIDs[i] = "sim-" + uuid.NewString()[:8]
	}

	var wg sync.WaitGroup
	for i, userID := range userIDs {
		wg.Add(1)
		go func(userID string, persona int) {
			defer wg.Done()
			if err := simulateUser(ctx, cfg, stats, userID, persona); err != nil {
				stats.add(func(s *Stats) { s.Errors++ })
				logger.Get().Warn(ctx, "simulated user failed",
					logger.String("user_id", userID), logger.Error(err))
			}
		}(userID, i%personaCount)
	}
	wg.Wait()

	// Let the queue drain before reading planets back.
	time.Sleep(persistenceSettle)

	if err := verifyPlanets(ctx, cfg, stats, userIDs); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return nil
}

// simulateUser runs a single user's session end to end.
func simulateUser(ctx context.Context, cfg *Config, stats *Stats, userID string, persona int) error {
	c, err := dial(ctx, cfg.BaseURL, userID)
	if err != nil {
		return err
	}
	c.stats = stats
	c.verbose = cfg.Verbose
	defer c.close()

	return c.run(ctx, cfg, persona)
}

// verifyPlanets checks that every simulated user who streamed samples ended
// up with a planet holding non-zero evolution points.
func verifyPlanets(ctx context.Context, cfg *Config, stats *Stats, userIDs []string) error {
	var missing int
	for _, userID := range userIDs {
		planet, err := planetOf(ctx, cfg, userID)
		if err != nil {
			missing++
			logger.Get().Warn(ctx, "planet missing after simulation",
				logger.String("user_id", userID), logger.Error(err))
			continue
		}
		if planet.EvolutionPoints == 0 {
			logger.Get().Warn(ctx, "planet has zero evolution points",
				logger.String("user_id", userID))
		}
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d planets missing", missing, len(userIDs))
	}
	return nil
}

// displayFinalStats logs the run summary.
func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.Get().Info(ctx, "simulation complete",
		logger.Int("sessions", stats.SessionsStarted),
		logger.Int("samples", stats.SamplesSent),
		logger.Int("updates", stats.UpdatesReceived),
		logger.Int("stageChanges", stats.StageChanges),
		logger.Int("achievements", stats.Achievements),
		logger.Int("errors", stats.Errors),
		logger.Duration("duration", stats.Duration),
	)
}
