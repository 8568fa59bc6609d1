package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/di"
	"github.com/mikey/llm-daily-brief/internal/factory"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	set di.RunnerSet,
	store core.Storage,
	llmFactory *factory.LLMFactory,
) error {
	defer logger.Sync()

	if len(set.Runners) == 0 {
		return fmt.Errorf("nothing to run: enable server.enabled or set brief.schedule")
	}

	// Start the runners, stopping those already started if one fails
	for i, r := range set.Runners {
		if err := r.Start(); err != nil {
			logger.Error("Failed to start runner", zap.Error(err))
			for j := i - 1; j >= 0; j-- {
				set.Runners[j].Stop()
			}
			return err
		}
	}
	logger.Info("Daily brief started", zap.Int("runners", len(set.Runners)))

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	for i := len(set.Runners) - 1; i >= 0; i-- {
		if err := set.Runners[i].Stop(); err != nil {
			logger.Error("Failed to stop runner", zap.Error(err))
		}
	}

	if err := llmFactory.Close(); err != nil {
		logger.Error("Failed to close LLM clients", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		logger.Error("Failed to close storage", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
