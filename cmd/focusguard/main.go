// Package main is the CLI entry point for focusguard.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/daemon"
	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/infra"
	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/policy"
	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "focusguard",
	Short: "Digital wellbeing guard - negotiates screen time instead of just blocking it",
	Long: `focusguard watches foreground app usage, detects when you blow past your
own thresholds, and opens a negotiation instead of slamming the door.
Agreed durations become enforceable agreements: a countdown, one warning,
a short grace period, then a forced close.`,
	Version: Version,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start monitoring and enforcement",
	Long: `Runs the detection loop (usage sampling, classification, breach
detection) and the enforcement loop (agreement countdowns, warnings,
forced closes) until interrupted.

Set ` + infra.EnvOracleKey + ` to enable negotiated interventions; without it,
breaches that would negotiate fall back to plain alerts.`,
	RunE: runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show active agreements and monitoring health",
	RunE:  runStatus,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent interventions",
	RunE:  runHistory,
}

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Show the usage baseline and suggested daily limit",
	Long:  `Analyzes recorded usage over the past days and prints the average, peak, top apps, and a suggested daily limit.`,
	RunE:  runBaseline,
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List app category mappings",
	RunE:  runCategories,
}

var categoriesSetCmd = &cobra.Command{
	Use:   "set <app-id> <category>",
	Short: "Override an app's category",
	Long: `Sets a user-authority category mapping for an app. User mappings are
never overwritten by the built-in catalog. Categories: SOCIAL_MEDIA, GAMES,
ADULT_CONTENT, ENTERTAINMENT, PRODUCTIVITY, COMMUNICATION, SHOPPING, NEWS,
BROWSER, OTHER.`,
	Args: cobra.ExactArgs(2),
	RunE: runCategoriesSet,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

var (
	dataDir      string
	jsonOutput   bool
	historyLimit int
	baselineDays int
	setBlocked   bool
	setThreshold time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "Directory for the encrypted store and key")

	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum interventions to show")
	baselineCmd.Flags().IntVar(&baselineDays, "days", 7, "Days of history to analyze")
	categoriesSetCmd.Flags().BoolVar(&setBlocked, "blocked", false, "Block the app outright")
	categoriesSetCmd.Flags().DurationVar(&setThreshold, "threshold", 0, "Custom continuous-use threshold (e.g. 45m)")

	categoriesCmd.AddCommand(categoriesSetCmd)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(versionCmd)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".focusguard"
	}
	return filepath.Join(home, ".focusguard")
}

// openStore unlocks (creating if needed) the encrypted store.
func openStore() (*infra.EncryptedStore, error) {
	keyProvider := infra.NewFileKeyProvider(dataDir)
	key, err := infra.EnsureKey(keyProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare encryption key: %w", err)
	}
	return infra.NewEncryptedStore(dataDir, key)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := createLogger()
	defer func() { _ = logger.Sync() }()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	classifier := usecase.NewClassifier(store.Mappings(), logger)
	if err := classifier.Seed(); err != nil {
		return fmt.Errorf("failed to seed category catalog: %w", err)
	}

	source := infra.NewProcessUsageSource(nil, store.Samples(), logger)
	sink := infra.NewLogPresenter(logger)
	controller := infra.NewProcessController(logger)

	triggerConfig := usecase.DefaultTriggerConfig()
	var oracle domain.DialogueOracle
	chatOracle, err := infra.NewChatOracle(infra.DefaultOracleConfig())
	switch {
	case err == nil:
		oracle = chatOracle
	case errors.Is(err, infra.ErrMissingOracleKey):
		logger.Warn("no oracle key configured, negotiation disabled",
			zap.String("env", infra.EnvOracleKey))
		// Without an oracle there is nobody to negotiate with.
		triggerConfig.ActionOverrides = map[domain.Severity]domain.Action{
			domain.SeverityMedium: domain.ActionAlert,
		}
	default:
		return err
	}

	detector := usecase.NewDetector(source, classifier, usecase.DefaultDetectorConfig(), logger)
	trigger := usecase.NewTrigger(store.Interventions(), sink, triggerConfig, logger)
	engine := usecase.NewEngine(oracle, usecase.DefaultEngineConfig(), logger)
	lifecycle := usecase.NewLifecycle(store.Agreements(), source, controller, sink,
		trigger.Rearm, usecase.DefaultLifecycleConfig(), logger)

	monitorConfig := daemon.DefaultMonitorConfig()
	guard := usecase.NewGuard(source, store.Samples(), detector, trigger, engine,
		lifecycle, store.Interventions(), monitorConfig.TickInterval, logger)

	monitor := daemon.NewMonitor(monitorConfig, guard, logger,
		store.Samples(), store.Interventions())
	enforcer := daemon.NewEnforcer(daemon.DefaultEnforcerConfig(), guard, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("focusguard running; press Ctrl-C to stop")

	errCh := make(chan error, 2)
	go func() { errCh <- monitor.Run(ctx) }()
	go func() { errCh <- enforcer.Run(ctx) }()

	err = <-errCh
	stop()
	<-errCh

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	logger := zap.NewNop()
	source := infra.NewProcessUsageSource(nil, store.Samples(), logger)
	lifecycle := usecase.NewLifecycle(store.Agreements(), source, nil, nil, nil,
		usecase.DefaultLifecycleConfig(), logger)

	fmt.Println("\n=== focusguard Status ===")
	if source.HasPermission() {
		fmt.Println("Usage access: granted")
	} else {
		fmt.Println("Usage access: DENIED (monitoring inactive)")
	}

	active, err := lifecycle.Active()
	if err != nil {
		return fmt.Errorf("failed to load agreements: %w", err)
	}

	if len(active) == 0 {
		fmt.Println("Active agreements: none")
	} else {
		fmt.Println("Active agreements:")
		now := time.Now()
		for _, a := range active {
			subject := a.AppID
			if subject == "" {
				subject = "whole device"
			}
			remaining := a.ExpiresAt.Sub(now).Round(time.Second)
			if remaining < 0 {
				remaining = 0
			}
			fmt.Printf("  [%s] %s: %s remaining (agreed %s)\n",
				lifecycle.TimerColor(a, now), subject, remaining, a.AgreedDuration)

			audit, err := store.Agreements().AuditFor(a.ID)
			if err != nil {
				return fmt.Errorf("failed to load audit trail: %w", err)
			}
			for _, entry := range audit {
				fmt.Printf("    %s extended %s -> %s (%s)\n",
					entry.At.Format("15:04:05"),
					entry.OldExpiresAt.Format("15:04:05"),
					entry.NewExpiresAt.Format("15:04:05"),
					entry.Reason)
			}
		}
	}

	fmt.Println("=========================")
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Interventions().Recent(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to load intervention history: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No interventions recorded.")
		return nil
	}

	fmt.Println("\n=== Recent Interventions ===")
	for _, r := range records {
		fmt.Printf("%s  %-9s %-32s %s\n",
			r.At.Format("2006-01-02 15:04:05"), r.Action, r.Channel, r.Outcome)
	}
	fmt.Println("============================")
	return nil
}

func runBaseline(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	logger := zap.NewNop()
	source := infra.NewProcessUsageSource(nil, store.Samples(), logger)
	analyzer := usecase.NewBaselineAnalyzer(source, logger)

	ctx := cmd.Context()
	baseline, err := analyzer.Analyze(ctx, baselineDays)
	if err != nil {
		return fmt.Errorf("baseline analysis failed: %w", err)
	}
	limit, err := analyzer.SuggestedDailyLimit(ctx, baselineDays)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Usage Baseline (%d days) ===\n", baseline.DaysAnalyzed)
	fmt.Printf("Average daily usage: %s\n", baseline.AverageDaily.Round(time.Minute))
	fmt.Printf("Peak daily usage:    %s\n", baseline.PeakDaily.Round(time.Minute))
	fmt.Printf("Suggested limit:     %s\n", limit.Round(time.Minute))
	if len(baseline.TopApps) > 0 {
		fmt.Println("Top apps:")
		for _, app := range baseline.TopApps {
			fmt.Printf("  %-32s %s\n", app.AppID, app.Total.Round(time.Minute))
		}
	}
	fmt.Println("===============================")
	return nil
}

func runCategories(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	mappings, err := store.Mappings().GetAll()
	if err != nil {
		return fmt.Errorf("failed to load mappings: %w", err)
	}

	if len(mappings) == 0 {
		fmt.Println("No category mappings yet. Run 'focusguard start' once to seed the catalog.")
		return nil
	}

	fmt.Println("\n=== Category Mappings ===")
	for _, m := range mappings {
		extras := ""
		if m.Blocked {
			extras += " [blocked]"
		}
		if m.CustomThreshold > 0 {
			extras += fmt.Sprintf(" [threshold %s]", m.CustomThreshold)
		}
		fmt.Printf("  %-36s %-14s %s%s\n", m.AppID, m.Category, m.AddedBy, extras)
	}
	fmt.Println("=========================")
	return nil
}

func runCategoriesSet(cmd *cobra.Command, args []string) error {
	appID, catArg := args[0], args[1]
	cat := domain.Category(catArg)
	if !policy.ValidCategory(cat) {
		return fmt.Errorf("unknown category %q", catArg)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	classifier := usecase.NewClassifier(store.Mappings(), zap.NewNop())
	if err := classifier.UserCategorize(appID, cat); err != nil {
		return fmt.Errorf("failed to set category: %w", err)
	}
	if cmd.Flags().Changed("blocked") {
		if err := classifier.SetBlocked(appID, setBlocked); err != nil {
			return fmt.Errorf("failed to set blocked flag: %w", err)
		}
	}
	if setThreshold > 0 {
		if err := classifier.SetCustomThreshold(appID, setThreshold); err != nil {
			return fmt.Errorf("failed to set threshold: %w", err)
		}
	}

	fmt.Printf("Mapped %s to %s\n", appID, cat)
	return nil
}

func createLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("focusguard %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
