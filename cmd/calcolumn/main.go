package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"calcolumn/internal/capture"
	"calcolumn/internal/config"
	appLog "calcolumn/internal/log"
)

// version stores the build version reported by --version.
var version = "0.1.0-dev"

func main() {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fang.Execute(ctx, newRootCmd(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// rootFlags holds persistent flag values shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "calcolumn",
		Short:         "Calendar column dashboard for Home Assistant",
		Long:          "calcolumn renders one day of several Home Assistant calendars side by side as an hour grid.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultPath := os.Getenv("CALCOLUMN_CONFIG")
	if defaultPath == "" {
		defaultPath = "./config.yaml"
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", defaultPath, "path to config file (.yaml or .toml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log level (debug, info, error)")

	root.AddCommand(
		newServeCmd(flags),
		newRenderCmd(flags),
		newCaptureCmd(flags),
		newValidateCmd(flags),
	)
	return root
}

func newRenderCmd(flags *rootFlags) *cobra.Command {
	var (
		date   string
		output string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one day as a static HTML page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(flags)
			if err != nil {
				return err
			}
			day, err := rt.parseDate(date)
			if err != nil {
				return err
			}

			rt.pollState(cmd.Context())
			c, err := rt.pool.Detached(cmd.Context(), day)
			if c == nil {
				return err
			}
			if err != nil {
				appLog.Error("render refresh failed", err, "date", day.Format("2006-01-02"))
			}

			html := c.StaticHTML()
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(html)
				return err
			}
			if err := os.WriteFile(output, html, 0o644); err != nil {
				return err
			}
			appLog.Info("page rendered", "output", output, "bytes", len(html))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to render as YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	return cmd
}

func newCaptureCmd(flags *rootFlags) *cobra.Command {
	var (
		url     string
		output  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Screenshot a running dashboard's snapshot page to PNG",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if url == "" {
				url = snapshotURL(cfg)
			}
			if output == "" {
				output = cfg.Capture.Output
			}
			return capture.ToFile(cmd.Context(), capture.Options{
				URL:     url,
				Width:   cfg.Capture.Width,
				Height:  cfg.Capture.Height,
				Timeout: timeout,
			}, output)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "page to capture (default the configured listen address /snapshot)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "PNG path (default capture.output)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "capture timeout")
	return cmd
}

func newValidateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file and card block",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if _, err := cfg.Location(); err != nil {
				return err
			}
			card, err := config.NormalizeCard(cfg.Card)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "config ok: %d calendars, hours %02d-%02d, %s layout\n",
				len(card.Calendars), card.StartHour, card.EndHour, card.EventLayout)
			return err
		},
	}
}

// loadConfig reads the config file and applies environment and flag overrides.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if token := os.Getenv("CALCOLUMN_HASS_TOKEN"); token != "" {
		cfg.HomeAssistant.Token = token
	}

	level := cfg.LogLevel
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(level))
	return cfg, nil
}

// snapshotURL points at the local listener; wildcard hosts become loopback.
func snapshotURL(cfg *config.Config) string {
	addr := cfg.Listen
	if host, port, err := net.SplitHostPort(addr); err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
		addr = net.JoinHostPort("127.0.0.1", port)
	}
	return "http://" + addr + "/snapshot"
}
