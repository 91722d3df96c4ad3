package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/knowledgehub/knowledgehub-go/internal/config"
	"github.com/knowledgehub/knowledgehub-go/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile  string
	verbose  bool
	logFile  string
	logger   *logrus.Logger
	cfg      *config.Config
	closeLog func() error
)

func main() {
	err := rootCmd.Execute()
	if closeLog != nil {
		closeLog()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "khub",
	Short: "KnowledgeHub - correlation intelligence for change records",
	Long: `KnowledgeHub analyzes change records across repositories and surfaces
temporal, semantic, and breaking-change correlations between them.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logrus.New()
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}

		// Engine packages log through slog.Default(). The daemon gets the
		// production default (JSON to a rotated file); one-shot commands
		// log to stdout only.
		var logCfg logging.Config
		switch {
		case verbose:
			logCfg = logging.DebugConfig()
		case cmd.Name() == "run":
			logCfg = logging.DefaultConfig(false)
		default:
			logCfg = logging.DebugConfig()
			logCfg.Level = slog.LevelInfo
			logCfg.AddSource = false
		}
		if logFile != "" {
			logCfg.OutputFile = logFile
			logCfg.JSONFormat = true
		}
		var err error
		closeLog, err = logging.Setup(logCfg)
		if err != nil {
			logger.WithError(err).Warn("Failed to set up structured logging")
		}

		cfg, err = config.Load(cfgFile)
		if err != nil {
			logger.WithError(err).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .knowledgehub/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write JSON logs to this file in addition to stdout")

	rootCmd.SetVersionTemplate(`KnowledgeHub {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(statusCmd)
}
