package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pmorrow/freedomtrack/internal/browser"
	"github.com/pmorrow/freedomtrack/internal/config"
	"github.com/pmorrow/freedomtrack/internal/diag"
	"github.com/pmorrow/freedomtrack/internal/history"
	"github.com/pmorrow/freedomtrack/internal/notify"
	"github.com/pmorrow/freedomtrack/internal/portal"
	"github.com/pmorrow/freedomtrack/internal/tracker"
	"github.com/pmorrow/freedomtrack/internal/vault"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "freedomtrack",
	Short: "Track Freedom Mobile data usage from the command line",
	Long: `freedomtrack signs in to the Freedom Mobile account portal in a visible
browser window, reads the current data usage off the dashboard, and records
one snapshot per day in a local history file.

The portal sends an SMS verification code during sign-in; the tool prompts
for it on the terminal and waits as long as you need.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		withNotify, _ := cmd.Flags().GetBool("notify")
		return runCheck(withNotify)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.Flags().Bool("notify", false, "post a desktop notification with the result")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(credentialsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

func initLogging(cfg config.Config) {
	level := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func runCheck(withNotify bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	initLogging(cfg)

	timeout, err := cfg.Portal.Timeout(25 * time.Second)
	if err != nil {
		printWarning("Invalid portal.page_timeout, using %s: %v", timeout, err)
	}

	capturer := diag.New(cfg.Diagnostics.Dir)
	tr := &tracker.Tracker{
		Vault: vault.Open(),
		OpenBrowser: func(ctx context.Context) (browser.Handle, error) {
			return browser.Open(ctx, browser.Options{FindWait: timeout})
		},
		Flow: &portal.Flow{
			LoginURL:    cfg.Portal.LoginURL,
			Prompter:    portal.NewStdinPrompter(),
			Diag:        capturer,
			PageTimeout: timeout,
		},
		Extractor: &portal.Extractor{
			DashboardURL: cfg.Portal.DashboardURL,
			PageTimeout:  timeout,
			Diag:         capturer,
		},
		Store: history.New(cfg.Storage.DataDir),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printStep("Checking data usage...")
	summary, err := tr.Run(ctx)
	if err != nil {
		return err
	}

	printSummary(summary)

	if withNotify {
		title, body := summary.Notification()
		if err := notify.New().Notify(ctx, title, body); err != nil {
			slog.Warn("desktop notification failed", "error", err)
		}
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the freedomtrack version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("freedomtrack version %s\n", version)
	},
}
