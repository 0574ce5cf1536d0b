// File: cmd/relay/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrtongx0/donation-relay/internal/config"
	"github.com/mrtongx0/donation-relay/internal/models"
	"github.com/mrtongx0/donation-relay/internal/notification"
	"github.com/mrtongx0/donation-relay/internal/storage"
	"github.com/mrtongx0/donation-relay/internal/tier"
	"github.com/mrtongx0/donation-relay/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "donation-relay",
	Short:   "Donation webhook relay",
	Long:    `Relays payment-platform donation webhooks to chat webhooks, posts a weekly donor leaderboard and announces new channel videos.`,
	Version: AppVersion,
	RunE:    runRelay,
}

// loadConfig loads and validates configuration, applying the flag overrides
// set on cmd
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if level := viper.GetString("log-level"); level != "" && cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = level
	}
	if viper.GetBool("debug") {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runRelay is the main command to run the relay
func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	if err := app.Start(); err != nil {
		_ = app.Stop()
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-signalChan
	fmt.Println("\nReceived shutdown signal, stopping relay...")

	return app.Stop()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "donation-relay %s\n", AppVersion)
	},
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

// validateConfigCmd validates the configuration
var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		if err := storage.ValidateStorageConfig(&cfg.Storage); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		if err := tier.NewResolverFromConfig(cfg.Tiers, cfg.DefaultTier).Validate(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration is valid!\n")
		fmt.Fprintf(out, "Environment: %s\n", cfg.App.Environment)
		fmt.Fprintf(out, "Donations: %t\n", cfg.Notifications.EnableDonations)
		fmt.Fprintf(out, "Donation webhook: %s\n", notification.RedactURL(cfg.Notifications.DonationWebhookURL))
		fmt.Fprintf(out, "Leaderboard: %t (window %s, top %d)\n", cfg.Leaderboard.Enabled, cfg.Leaderboard.Window, cfg.Leaderboard.Limit)
		fmt.Fprintf(out, "Feed watcher: %t\n", cfg.Feed.Enabled)
		fmt.Fprintf(out, "Storage: %s\n", cfg.Storage.Type)
		fmt.Fprintf(out, "Tiers: %d\n", len(cfg.Tiers))

		return nil
	},
}

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test storage and send a sample donation notice",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.File); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		fmt.Printf("Testing storage connection (%s)...\n", cfg.Storage.Type)
		store, err := storage.NewStore(&cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		if err := store.Connect(); err != nil {
			return fmt.Errorf("failed to connect to storage: %w", err)
		}
		defer store.Close()
		if err := store.Ping(); err != nil {
			return fmt.Errorf("storage ping failed: %w", err)
		}
		fmt.Println("✓ Storage connection successful")

		if cfg.Notifications.DonationWebhookURL == "" {
			fmt.Println("Donation webhook not configured, skipping send test")
			return nil
		}

		fmt.Println("Sending sample donation notice...")
		logger := notification.NewNotificationLoggerFrom(utils.GetLogger())
		sender := notification.NewWebhookSender(notification.SenderConfig{Timeout: cfg.Notifications.Timeout}, logger)
		notifier := notification.NewNotificationManager(sender, logger, nil)
		formatter := notification.NewFormatter(notification.FormatterConfigFrom(cfg.Notifications))
		resolver := tier.NewResolverFromConfig(cfg.Tiers, cfg.DefaultTier)

		event := models.DonationEvent{
			DonatorName:   "Test Supporter",
			Amount:        100,
			DonateMessage: "This is a test notification",
			Time:          models.FormatTimestamp(time.Now()),
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Notifications.Timeout+5*time.Second)
		defer cancel()
		msg := formatter.DonationNotice(event, resolver.Resolve(event.Amount))
		if err := notifier.Notify(ctx, models.NotificationKindTest, cfg.Notifications.DonationWebhookURL, msg); err != nil {
			return fmt.Errorf("failed to send sample notice: %w", err)
		}
		fmt.Println("✓ Sample donation notice sent")

		fmt.Println("\nAll checks passed! ✓")
		return nil
	},
}

// init initializes the CLI commands
func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug mode")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(testCmd)
	configCmd.AddCommand(validateConfigCmd)
}

// main is the entry point
func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
