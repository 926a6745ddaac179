package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stubtree/internal/driver"
	"stubtree/internal/index"
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [path]",
		Short: "Build stub trees for every Kotlin file and persist the snapshot",
		Long: `Build discovers Kotlin sources under the project root, builds (or fetches
from cache) the stub tree of each file in parallel, and replaces the
snapshot database with the result.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runBuild,
	}
	cmd.Flags().Int("jobs", 0, "max parallel files (0=[index].jobs or GOMAXPROCS)")
	cmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	cmd.Flags().Bool("no-cache", false, "ignore the memory and disk caches")
	cmd.Flags().String("format", "pretty", "summary format (pretty|json)")
	return cmd
}

type buildSummary struct {
	Root      string                `json:"root"`
	Files     int                   `json:"files"`
	Parsed    int                   `json:"parsed"`
	Cached    int                   `json:"cached"`
	Recovered int                   `json:"recovered"`
	Partial   []string              `json:"partial,omitempty"`
	Failed    []string              `json:"failed,omitempty"`
	Indexes   map[string]int        `json:"indexes"`
	Store     string                `json:"store"`
	Timings   *driver.TimingPayload `json:"timings,omitempty"`
}

func runBuild(cmd *cobra.Command, args []string) error {
	start := ""
	if len(args) > 0 {
		start = args[0]
	}
	s, err := openSession(cmd, start)
	if err != nil {
		return err
	}

	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format = strings.ToLower(format)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}

	var files []string
	err = s.phase("discover", func(context.Context) error {
		var err error
		files, err = driver.Discover(s.cfg.Root, s.cfg.Matcher())
		return err
	})
	if err != nil {
		return err
	}

	opts := s.options()
	if jobs > 0 {
		opts.Jobs = jobs
	}
	store := index.NewMemoryStore()
	opts.Index = store
	if !noCache {
		memory, disk, err := s.caches()
		if err != nil {
			return err
		}
		defer memory.Close()
		opts.Memory, opts.Disk = memory, disk
	}

	var res *driver.Result
	err = s.phase("stub", func(ctx context.Context) error {
		var err error
		if !s.quiet && format == "pretty" && shouldUseTUI(mode) && len(files) > 0 {
			res, err = runStubWithUI(ctx, "stubbing", files, opts)
		} else {
			res, err = driver.StubFiles(ctx, files, opts)
		}
		return err
	})
	if err != nil {
		return err
	}

	err = s.phase("persist", func(context.Context) error {
		st, err := s.openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		return driver.Persist(st, res)
	})
	if err != nil {
		return err
	}

	summary := summarize(s, res, store)
	if format == "json" {
		if s.timer != nil {
			payload := driver.NewTimingPayload("build", s.cfg.Root, len(files), s.timer)
			summary.Timings = &payload
		}
		enc := json.NewEncoder(s.out())
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		for _, fe := range res.Errors {
			printError(s.errOut(), fe)
		}
		if !s.quiet {
			for _, p := range summary.Partial {
				_, _ = fmt.Fprintf(s.errOut(), "%s %s: syntax errors, stubs may be incomplete\n", warnColor.Sprint("warning:"), pathColor.Sprint(p))
			}
			_, _ = fmt.Fprintf(s.out(), "stubbed %d files (%d parsed, %d cached, %d recovered) into %s\n",
				summary.Files, summary.Parsed, summary.Cached, summary.Recovered,
				formatPathForOutput(s.cfg.Root, summary.Store))
		}
		s.printTimings()
	}

	if len(res.Errors) > 0 {
		return fmt.Errorf("%d of %d files failed", len(res.Errors), len(files))
	}
	return nil
}

func summarize(s *session, res *driver.Result, store *index.MemoryStore) buildSummary {
	summary := buildSummary{
		Root:      s.cfg.Root,
		Files:     len(res.Files),
		Recovered: res.Recovered(),
		Indexes:   make(map[string]int),
		Store:     s.cfg.StorePath(),
	}
	for _, f := range res.Files {
		if f.From == driver.FromSource {
			summary.Parsed++
		} else {
			summary.Cached++
		}
		if f.Partial {
			summary.Partial = append(summary.Partial, f.Path)
		}
	}
	for _, fe := range res.Errors {
		summary.Failed = append(summary.Failed, fe.Path)
	}
	for id, n := range store.Sizes() {
		summary.Indexes[id.String()] = n
	}
	return summary
}
