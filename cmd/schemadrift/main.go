package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/deepak-highbeam/schemadrift/internal/config"
	"github.com/deepak-highbeam/schemadrift/internal/daemon"
	"github.com/deepak-highbeam/schemadrift/internal/ipc"
	"github.com/deepak-highbeam/schemadrift/internal/logging"
	"github.com/deepak-highbeam/schemadrift/internal/report"
	"github.com/deepak-highbeam/schemadrift/internal/schema"
)

var envFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "schemadrift",
		Short: "Generate migrations from live MySQL schema drift",
		Long: "schemadrift watches a MySQL schema and the current git branch, and writes " +
			"reversible up/down migration files whenever a table drifts from its recorded baseline.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			report.SetColor(term.IsTerminal(int(os.Stdout.Fd())))
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env", config.DefaultEnvFile, "Path to the .env configuration file")

	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(stopCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(pingCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(diffCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the schemadrift daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// Check if daemon is already running.
			client := ipc.NewClient(cfg.SocketPath)
			if err := client.Ping(); err == nil {
				fmt.Println("daemon is already running")
				return nil
			}

			logFile, err := logging.Setup(cfg.LogFile)
			if err != nil {
				return err
			}
			defer logFile.Close()

			// Remove stale socket file (from a prior crash).
			if _, err := os.Stat(cfg.SocketPath); err == nil {
				log.Println("removing stale socket file")
				_ = os.Remove(cfg.SocketPath)
			}

			// The daemon hands the store to the server once it is open.
			ipcServer := ipc.NewServer(nil, nil)
			d := daemon.New(cfg, ipcServer)
			ipcServer.SetDaemon(d)

			// Start blocks until signal or error.
			return d.Start()
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the schemadrift daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client := ipc.NewClient(cfg.SocketPath)
			if err := client.RequestStop(); err != nil {
				return fmt.Errorf("stop daemon: %w", err)
			}

			fmt.Println("daemon stopping")
			return nil
		},
	}
}

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check if daemon is alive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client := ipc.NewClient(cfg.SocketPath)
			if err := client.Ping(); err != nil {
				fmt.Println("daemon is not running")
				return err
			}

			fmt.Println("daemon is alive")
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client := ipc.NewClient(cfg.SocketPath)
			status, err := client.Status()
			if err != nil {
				return fmt.Errorf("daemon not running or unreachable: %w", err)
			}

			if jsonOutput {
				fmt.Println(report.FormatJSON(status))
			} else {
				fmt.Print(report.FormatStatus(status))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a poll cycle now",
		Long: `Ask the running daemon to poll the database immediately. When no daemon
is running, run a single poll cycle in this process and exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			err = ipc.NewClient(cfg.SocketPath).RequestSync()
			if err == nil {
				fmt.Println("sync requested from running daemon")
				return nil
			}
			if !errors.Is(err, ipc.ErrUnavailable) {
				return fmt.Errorf("request sync: %w", err)
			}

			logFile, err := logging.Setup(cfg.LogFile)
			if err != nil {
				return err
			}
			defer logFile.Close()

			d := daemon.New(cfg, nil)
			return d.RunOnce(context.Background())
		},
	}
}

func diffCmd() *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "diff <old.sql> <new.sql>",
		Short: "Print the up/down migration between two CREATE TABLE files",
		Long: `Normalize two CREATE TABLE statements and print the ALTER statements
that take the first to the second, followed by their inverse.

Reads files only -- no database or daemon is needed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldRaw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			newRaw, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}

			up, down := schema.Diff(table, schema.Normalize(string(oldRaw)), schema.Normalize(string(newRaw)))
			fmt.Print(report.FormatDiff(table, up, down))
			return nil
		},
	}

	cmd.Flags().StringVar(&table, "table", "table_name", "Table name used in the generated statements")

	return cmd
}

func historyCmd() *cobra.Command {
	var (
		branch     string
		limit      int
		jsonOutput bool
		dbPath     string
		global     bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show migrations written by the daemon",
		Long: `Show the ledger of migration files the daemon has written.

Reads the SQLite database directly -- the daemon does not need to be running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if global {
				if branch != "" {
					return fmt.Errorf("--global and --branch are mutually exclusive")
				}
				branch = report.GlobalLabel
			}

			// Resolve DB path: flag > config default.
			if dbPath == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				dbPath = cfg.StateDB
			}

			h, err := report.GenerateHistory(dbPath, branch, limit)
			if err != nil {
				return fmt.Errorf("generate history: %w", err)
			}

			if jsonOutput {
				fmt.Println(report.FormatJSON(h))
			} else {
				fmt.Print(report.FormatHistory(h))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "", "Only show migrations for this (sanitized) branch")
	cmd.Flags().BoolVar(&global, "global", false, "Only show migrations written under tables/<table>/")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of migrations to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&dbPath, "db", "", "Override database path (default: from config)")

	return cmd
}
