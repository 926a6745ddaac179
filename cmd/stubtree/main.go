package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"stubtree/internal/version"
)

// cleanups run after the command finishes, error or not. PersistentPostRun
// is skipped when RunE fails.
var (
	cleanups  []func()
	runFailed bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stubtree",
		Short:         "Kotlin stub tree builder and index",
		Long:          `stubtree builds compact stub trees for Kotlin declarations, persists them and answers index queries`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := setupColor(cmd); err != nil {
				return err
			}
			return setupProfiling(cmd)
		},
	}
	root.Version = version.Version

	root.AddCommand(newBuildCmd())
	root.AddCommand(newDumpCmd())
	root.AddCommand(newFindCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newCleanCmd())
	root.AddCommand(newVersionCmd())

	// Глобальные флаги
	flags := root.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("quiet", false, "suppress non-essential output")
	flags.Bool("timings", false, "show timing information")
	flags.String("config", "", "path to stubtree.toml (default: discovered upward)")
	flags.String("trace", "", "write trace events to file (- for stderr)")
	flags.String("trace-level", "", "trace level (off|error|phase|detail|debug), default from [trace].level")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.String("trace-format", "auto", "trace format (auto|text|ndjson)")
	flags.Int("trace-ring-size", 4096, "events kept by the ring tracer")
	flags.Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval")
	flags.String("cpu-profile", "", "write CPU profile to file")
	flags.String("mem-profile", "", "write heap profile to file on exit")
	flags.String("runtime-trace", "", "write Go runtime execution trace to file")
	return root
}

func runCleanups() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}

func main() {
	root := newRootCmd()
	err := root.Execute()
	runFailed = err != nil
	runCleanups()
	if err != nil {
		printError(root.ErrOrStderr(), err)
		os.Exit(1)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
