package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"stubtree/internal/config"
	"stubtree/internal/driver"
	"stubtree/internal/elements"
	"stubtree/internal/index"
	"stubtree/internal/observ"
	"stubtree/internal/storage"
	"stubtree/internal/syntax"
	"stubtree/internal/trace"
)

const appName = "stubtree"

// session is the per-command state shared by the subcommands.
type session struct {
	cmd   *cobra.Command
	cfg   *config.Config
	reg   *elements.Registry
	timer *observ.Timer
	quiet bool
}

// openSession loads the configuration found from start (a directory or a
// file inside the project) unless --config names one, and sets up tracing.
func openSession(cmd *cobra.Command, start string) (*session, error) {
	configPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		if start == "" {
			start = "."
		}
		info, statErr := os.Stat(start)
		if statErr != nil {
			return nil, fmt.Errorf("failed to stat %q: %w", start, statErr)
		}
		if !info.IsDir() {
			start = filepath.Dir(start)
		}
		cfg, err = config.Load(start)
	}
	if err != nil {
		return nil, err
	}

	cleanup, err := setupTracing(cmd, cfg)
	if err != nil {
		return nil, err
	}
	cleanups = append(cleanups, cleanup)

	s := &session{
		cmd:   cmd,
		cfg:   cfg,
		reg:   elements.NewDefaultRegistry(cfg.Policy()),
		quiet: quiet(cmd),
	}
	if timings, _ := cmd.Root().PersistentFlags().GetBool("timings"); timings {
		s.timer = observ.NewTimer()
	}
	return s, nil
}

func (s *session) ctx() context.Context { return s.cmd.Context() }
func (s *session) out() io.Writer       { return s.cmd.OutOrStdout() }
func (s *session) errOut() io.Writer    { return s.cmd.ErrOrStderr() }

// phase runs fn as a timed, traced phase.
func (s *session) phase(name string, fn func(ctx context.Context) error) error {
	tracer := trace.FromContext(s.ctx())
	span := trace.Begin(tracer, trace.ScopeDriver, name, trace.CurrentSpan(s.ctx()).SpanID)
	ctx := trace.WithSpanContext(s.ctx(), trace.SpanContext{SpanID: span.ID()})
	var idx int
	if s.timer != nil {
		idx = s.timer.Begin(name)
	}
	err := fn(ctx)
	if s.timer != nil {
		note := ""
		if err != nil {
			note = "failed"
		}
		s.timer.End(idx, note)
	}
	detail := ""
	if err != nil {
		detail = "error: " + err.Error()
	}
	span.End(detail)
	return err
}

// options returns driver options for this project, without caches.
func (s *session) options() driver.Options {
	return driver.Options{
		Root:      s.cfg.Root,
		Registry:  s.reg,
		Resolver:  syntax.PackageResolver{},
		Evaluator: syntax.LiteralEvaluator{},
		Jobs:      s.cfg.Jobs(),
		Timer:     s.timer,
	}
}

// caches opens the configured memory and disk caches. Both are nil when
// caching is disabled.
func (s *session) caches() (*driver.TreeCache, *driver.DiskCache, error) {
	if s.cfg.Cache.Disabled {
		return nil, nil, nil
	}
	memory, err := driver.NewTreeCache(s.cfg.Cache.Memory)
	if err != nil {
		return nil, nil, fmt.Errorf("memory cache: %w", err)
	}
	disk, err := driver.OpenDiskCache(s.cfg.CacheDir(), appName)
	if err != nil {
		memory.Close()
		return nil, nil, fmt.Errorf("disk cache: %w", err)
	}
	return memory, disk, nil
}

func (s *session) openStore() (*storage.Store, error) {
	return storage.Open(s.cfg.StorePath())
}

var errNoSnapshot = errors.New("no snapshot yet, run `stubtree build` first")

// loadIndex opens the snapshot, rebuilds the indexes from it and writes back
// whatever had to be repaired.
func (s *session) loadIndex() (*driver.Result, *index.MemoryStore, error) {
	if _, err := os.Stat(s.cfg.StorePath()); errors.Is(err, os.ErrNotExist) {
		return nil, nil, errNoSnapshot
	}
	st, err := s.openStore()
	if err != nil {
		return nil, nil, err
	}
	defer st.Close()

	store := index.NewMemoryStore()
	var res *driver.Result
	err = s.phase("load", func(ctx context.Context) error {
		opts := s.options()
		opts.Index = store
		var err error
		res, err = driver.LoadSnapshot(ctx, st, opts)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if res.Recovered() > 0 || len(res.Dropped) > 0 || len(res.Errors) > 0 {
		if !s.quiet {
			_, _ = fmt.Fprintf(s.errOut(), "%s snapshot repaired: %d rebuilt, %d dropped, %d failed\n",
				warnColor.Sprint("warning:"), res.Recovered(), len(res.Dropped), len(res.Errors))
		}
		if err := driver.Repair(st, res); err != nil {
			return nil, nil, err
		}
	}
	return res, store, nil
}

func (s *session) printTimings() {
	if s.timer == nil {
		return
	}
	_, _ = fmt.Fprint(s.errOut(), s.timer.Summary())
}
