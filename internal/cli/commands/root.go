package commands

import (
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/objectstore/internal/cli/ui"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

var (
	configFlag  string
	modelFlag   string
	driverFlag  string
	dsnFlag     string
	noColorFlag bool
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "objectstore",
		Short: "Store and query business-object graphs in a relational database",
		Long: color.CyanString(`objectstore - business objects over SQL

Stores object graphs with example-based deduplication, compiles query models
to SQL, and explains how the engine would evaluate them.

Supported engines:
  • SQLite (mattn/go-sqlite3)
  • PostgreSQL (pgx or lib/pq)`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFlag, "config", "", "config file (default ./objectstore.yml)")
	flags.StringVar(&modelFlag, "model", "", "class model file (overrides model.path)")
	flags.StringVar(&driverFlag, "driver", "", "database driver: sqlite3, pgx or postgres (overrides database.driver)")
	flags.StringVar(&dsnFlag, "dsn", "", "database DSN (overrides database.dsn)")
	flags.BoolVar(&noColorFlag, "no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewDDLCommand())
	rootCmd.AddCommand(NewLoadCommand())
	rootCmd.AddCommand(NewQueryCommand())
	rootCmd.AddCommand(NewExplainCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the objectstore version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			valueColor := color.New(color.FgWhite)
			out := cmd.OutOrStdout()

			titleColor.Fprint(out, "objectstore version: ")
			valueColor.Fprintln(out, Version)

			titleColor.Fprint(out, "Git commit: ")
			valueColor.Fprintln(out, GitCommit)

			titleColor.Fprint(out, "Build date: ")
			valueColor.Fprintln(out, BuildDate)

			titleColor.Fprint(out, "Go version: ")
			valueColor.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		ui.WriteError(rootCmd.ErrOrStderr(), ui.DescribeError(err, noColorFlag))
		return err
	}
	return nil
}
