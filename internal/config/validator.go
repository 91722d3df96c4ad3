package config

import (
	"fmt"
)

var validModes = map[string]bool{
	"auto":     true,
	"basic":    true,
	"enhanced": true,
	"hybrid":   true,
}

// Validate checks that the loaded configuration is internally consistent
func (c *Config) Validate() error {
	if c.Processor.BatchSize < 1 {
		return fmt.Errorf("invalid batch_size %d: must be at least 1", c.Processor.BatchSize)
	}
	if c.Processor.MaxContextDocuments < 1 {
		return fmt.Errorf("invalid max_context_documents %d: must be at least 1", c.Processor.MaxContextDocuments)
	}
	if c.Processor.MaxRetries < 1 {
		return fmt.Errorf("invalid max_retries %d: must be at least 1", c.Processor.MaxRetries)
	}
	if c.Analysis.TemporalThresholdHours <= 0 {
		return fmt.Errorf("invalid temporal_threshold_hours %.2f: must be positive", c.Analysis.TemporalThresholdHours)
	}
	if c.Analysis.SemanticThreshold < 0 || c.Analysis.SemanticThreshold > 1 {
		return fmt.Errorf("invalid semantic_threshold %.2f: must be in [0,1]", c.Analysis.SemanticThreshold)
	}
	if c.Analysis.MaxCorrelationsPerDocument < 1 {
		return fmt.Errorf("invalid max_correlations_per_document %d: must be at least 1", c.Analysis.MaxCorrelationsPerDocument)
	}
	if !validModes[c.Integration.AnalysisMode] {
		return fmt.Errorf("invalid analysis_mode %q: must be one of auto, basic, enhanced, hybrid", c.Integration.AnalysisMode)
	}
	if c.Integration.EnhancedThreshold < 0 || c.Integration.EnhancedThreshold > 1 {
		return fmt.Errorf("invalid enhanced_threshold %.2f: must be in [0,1]", c.Integration.EnhancedThreshold)
	}
	if c.Integration.FallbackTimeout <= 0 {
		return fmt.Errorf("invalid fallback_timeout %s: must be positive", c.Integration.FallbackTimeout)
	}
	return nil
}
