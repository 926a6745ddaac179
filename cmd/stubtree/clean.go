package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean [path]",
		Short: "Remove the snapshot database and the stub cache",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runClean,
	}
	cmd.Flags().Bool("keep-cache", false, "only remove the snapshot database")
	return cmd
}

func runClean(cmd *cobra.Command, args []string) error {
	start := ""
	if len(args) > 0 {
		start = args[0]
	}
	s, err := openSession(cmd, start)
	if err != nil {
		return err
	}
	keepCache, err := cmd.Flags().GetBool("keep-cache")
	if err != nil {
		return err
	}

	storePath := s.cfg.StorePath()
	switch err := os.Remove(storePath); {
	case err == nil:
		_, _ = fmt.Fprintf(s.out(), "removed %s\n", formatPathForOutput(s.cfg.Root, storePath))
	case errors.Is(err, os.ErrNotExist):
		if !s.quiet {
			_, _ = fmt.Fprintln(s.out(), "snapshot not found")
		}
	default:
		return fmt.Errorf("failed to remove %q: %w", storePath, err)
	}

	if keepCache || s.cfg.Cache.Disabled {
		return nil
	}
	_, disk, err := s.caches()
	if err != nil {
		return err
	}
	if err := disk.DropAll(); err != nil {
		return fmt.Errorf("failed to clear cache %q: %w", disk.Dir(), err)
	}
	_, _ = fmt.Fprintf(s.out(), "cleared cache %s\n", disk.Dir())
	return nil
}

func formatPathForOutput(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	if strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
