// Command trafikwatch polls SNMP interface counters and shows live traffic
// rates, either on an interactive dashboard or as JSONL on stdout for
// scripting. The discover subcommand inventories a device's interfaces to
// bootstrap the configuration.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/netwatch/trafikwatch/models"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/app"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/discover"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/export"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/poller"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/tui"
)

// Version information set via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Root flags.
var (
	logLevel string
	logFmt   string
	logFile  string
)

// watch flags.
var (
	watchConfig     string
	watchHeadless   bool
	watchOutput     string
	watchMaxBytes   int64
	watchMaxBackups int
)

// discover flags.
var (
	discCommunity string
	discVersion   string
	discPort      int
	discUsername  string
	discAuthProto string
	discAuthPass  string
	discPrivProto string
	discPrivPass  string
	discTimeout   time.Duration
	discAll       bool
	discYAML      bool
	discLabel     string
)

var rootCmd = &cobra.Command{
	Use:   "trafikwatch",
	Short: "Live SNMP interface traffic monitor",
	Long: `trafikwatch polls interface counters over SNMP and turns them into live
in/out bit rates with a bounded history per interface.

Run 'trafikwatch watch' for the dashboard, 'trafikwatch watch --headless'
for JSONL output, and 'trafikwatch discover <host>' to inventory a device.`,
	SilenceUsage: true,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll configured targets and show live rates",
	Long: `Poll every interface in the configuration on a fixed interval.

By default an interactive dashboard opens. With --headless one JSONL record
per target is written each interval instead, to stdout or to a rotating file
given with --output.

Examples:
  trafikwatch watch --config trafikwatch.yaml
  trafikwatch watch --headless --output traffic.jsonl`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchCommand()
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover <host>",
	Short: "List a device's interfaces",
	Long: `Walk a device's interface tables and print every interface with its
index, name, speed, and status. Loopbacks and down interfaces are skipped
unless --all is given. With --yaml a ready-to-paste configuration snippet is
printed instead of the table.

Examples:
  trafikwatch discover 10.0.0.1
  trafikwatch discover 10.0.0.1 --community private --yaml
  trafikwatch discover 10.0.0.1 --snmp-version 3 --username monitor --auth-password s3cret`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return discoverCommand(args[0])
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("trafikwatch %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		fmt.Printf("go: %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFmt, "log-format", "text", "Log format: text, json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")

	watchCmd.Flags().StringVarP(&watchConfig, "config", "c", "trafikwatch.yaml", "Configuration file")
	watchCmd.Flags().BoolVar(&watchHeadless, "headless", false, "Emit JSONL snapshots instead of the dashboard")
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "", "JSONL output file in headless mode (default stdout)")
	watchCmd.Flags().Int64Var(&watchMaxBytes, "output-max-bytes", 0, "Rotate the output file beyond this size (0 disables)")
	watchCmd.Flags().IntVar(&watchMaxBackups, "output-max-backups", 5, "Rotated output files to keep (0 keeps all)")

	discoverCmd.Flags().StringVar(&discCommunity, "community", "public", "SNMP community (v1/v2c)")
	discoverCmd.Flags().StringVar(&discVersion, "snmp-version", "2c", "SNMP version: 1, 2c, 3")
	discoverCmd.Flags().IntVar(&discPort, "port", 161, "SNMP UDP port")
	discoverCmd.Flags().StringVar(&discUsername, "username", "", "SNMPv3 username")
	discoverCmd.Flags().StringVar(&discAuthProto, "auth-protocol", "sha", "SNMPv3 auth protocol")
	discoverCmd.Flags().StringVar(&discAuthPass, "auth-password", "", "SNMPv3 auth passphrase")
	discoverCmd.Flags().StringVar(&discPrivProto, "priv-protocol", "aes128", "SNMPv3 privacy protocol")
	discoverCmd.Flags().StringVar(&discPrivPass, "priv-password", "", "SNMPv3 privacy passphrase")
	discoverCmd.Flags().DurationVar(&discTimeout, "timeout", 5*time.Second, "Request timeout")
	discoverCmd.Flags().BoolVar(&discAll, "all", false, "Include down and loopback interfaces")
	discoverCmd.Flags().BoolVar(&discYAML, "yaml", false, "Print a configuration snippet instead of a table")
	discoverCmd.Flags().StringVar(&discLabel, "label", "", "Label for the generated snippet")

	rootCmd.AddCommand(watchCmd, discoverCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// watch
// ─────────────────────────────────────────────────────────────────────────────

func watchCommand() error {
	// The dashboard owns the terminal, so interactive runs log nowhere
	// unless --log-file redirects them.
	logDest := os.Stderr
	if !watchHeadless && logFile == "" {
		logFile = os.DevNull
	}
	logger, closeLog, err := buildLogger(logLevel, logFmt, logFile, logDest)
	if err != nil {
		return err
	}
	defer closeLog()

	var exportOut io.Writer
	if watchHeadless && watchOutput != "" {
		rf, err := export.NewRotatingFile(export.RotateConfig{
			FilePath:   watchOutput,
			MaxBytes:   watchMaxBytes,
			MaxBackups: watchMaxBackups,
		}, logger)
		if err != nil {
			return err
		}
		defer rf.Close()
		exportOut = rf
	}

	engine := app.New(app.Config{
		ConfigPath:   watchConfig,
		Headless:     watchHeadless,
		ExportWriter: exportOut,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Stop()

	if watchHeadless {
		logger.Info("running headless, press Ctrl-C to stop")
		<-ctx.Done()
		return nil
	}
	return tui.Run(engine)
}

// ─────────────────────────────────────────────────────────────────────────────
// discover
// ─────────────────────────────────────────────────────────────────────────────

func discoverCommand(host string) error {
	logger, closeLog, err := buildLogger(logLevel, logFmt, logFile, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	target := models.Target{
		Host: host,
		Port: discPort,
		Identity: models.CredentialIdentity{
			Version:        discVersion,
			Community:      discCommunity,
			Username:       discUsername,
			AuthProtocol:   discAuthProto,
			AuthPassphrase: discAuthPass,
			PrivProtocol:   discPrivProto,
			PrivPassphrase: discPrivPass,
		},
	}

	sess, err := poller.NewSession(target, poller.SessionOptions{Timeout: discTimeout})
	if err != nil {
		return err
	}
	defer sess.Close()

	scanner := discover.NewScanner(sess, logger)
	ifaces, err := scanner.Scan(context.Background(), discover.Options{
		IncludeDown:     discAll,
		IncludeLoopback: discAll,
	})
	if err != nil {
		return err
	}
	if len(ifaces) == 0 {
		return fmt.Errorf("no matching interfaces on %s", host)
	}

	if discYAML {
		data, err := discover.GenerateYAML(host, discLabel, ifaces)
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
		return nil
	}
	fmt.Print(discover.FormatTable(ifaces))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Logger
// ─────────────────────────────────────────────────────────────────────────────

func buildLogger(level, format, file string, fallback io.Writer) (*slog.Logger, func(), error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
	}

	out := fallback
	closeFn := func() {}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = func() { _ = f.Close() }
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		closeFn()
		return nil, nil, fmt.Errorf("unknown log format %q (expected json|text)", format)
	}
	return slog.New(handler), closeFn, nil
}
