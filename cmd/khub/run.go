package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/knowledgehub/knowledgehub-go/internal/processor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the background correlation processor",
	Long: `Starts the correlation processor: on each processing interval it
discovers change records without stored correlations, enqueues them by age,
and analyzes them in priority order. Runs until interrupted.`,
	RunE: runProcessor,
}

func runProcessor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stack, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	proc := processor.New(cfg.Processor, stack.store, stack.integrator)
	if !proc.Start(ctx) {
		return fmt.Errorf("processor already running")
	}

	logger.WithFields(logrus.Fields{
		"interval":   cfg.Processor.ProcessingInterval,
		"batch_size": cfg.Processor.BatchSize,
		"mode":       cfg.Integration.AnalysisMode,
	}).Info("correlation processor running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("shutting down")

	cancel()
	proc.Stop()

	stats := proc.Stats()
	fmt.Printf("\nProcessed:    %d\n", stats.DocumentsProcessed)
	fmt.Printf("Succeeded:    %d\n", stats.Succeeded)
	fmt.Printf("Failed:       %d\n", stats.Failed)
	fmt.Printf("Correlations: %d\n", stats.CorrelationsGenerated)
	fmt.Printf("Fallbacks:    %d\n", stack.integrator.FallbackCount())

	for _, failure := range proc.RecentFailures(5) {
		fmt.Printf("  failed: %s (%d attempts): %s\n", failure.DocumentID, failure.Attempts, failure.LastError)
	}

	return nil
}
