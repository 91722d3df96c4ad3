package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/knowledgehub/knowledgehub-go/internal/models"
)

var (
	analyzeRepo string
	analyzeMode string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <document-id>",
	Short: "Run correlation analysis for one document",
	Long: `Fetches the document and its context window from the store, runs a
single correlation analysis, persists the result, and prints it as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeRepo, "repo", "", "restrict the context window to one repository")
	analyzeCmd.Flags().StringVar(&analyzeMode, "mode", "", "override analysis mode (auto, basic, enhanced, hybrid)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	documentID := args[0]

	if analyzeMode != "" {
		cfg.Integration.AnalysisMode = analyzeMode
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stack, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	target, err := stack.store.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}

	contextDocs, err := stack.store.GetDocuments(ctx, models.QueryParams{
		Repository: analyzeRepo,
		Since:      time.Now().Add(-cfg.Processor.ContextTimeRange),
		Limit:      cfg.Processor.MaxContextDocuments,
	})
	if err != nil {
		return fmt.Errorf("load context window: %w", err)
	}

	result, err := stack.integrator.Analyze(ctx, *target, contextDocs)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if err := stack.store.UpdateCorrelations(ctx, documentID, result); err != nil {
		logger.WithError(err).Warn("failed to persist correlations")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
