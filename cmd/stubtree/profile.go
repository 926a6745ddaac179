package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stubtree/internal/prof"
)

// setupProfiling starts the profilers named by the persistent flags and
// queues their shutdown on cleanups.
func setupProfiling(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()

	var opts prof.Options
	var err error
	if opts.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if opts.Mem, err = flags.GetString("mem-profile"); err != nil {
		return fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if opts.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if !opts.Enabled() {
		return nil
	}

	p, err := prof.Start(opts)
	if err != nil {
		return err
	}
	errOut := cmd.ErrOrStderr()
	cleanups = append(cleanups, func() {
		if err := p.Stop(); err != nil {
			fmt.Fprintf(errOut, "failed to write profiles: %v\n", err)
		}
	})
	return nil
}
