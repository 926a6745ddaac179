package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"stubtree/internal/storage"
	"stubtree/internal/stub"
	"stubtree/internal/trace"
)

// metaSalt holds the SchemaSalt a snapshot was written with.
const metaSalt = "salt"

// LoadSnapshot decodes every tree persisted in st and indexes it, without
// touching the sources. Entries that fail to decode, name kinds the registry
// lacks, or were written under another salt are rebuilt from source when the
// file still exists and reported in Result.Dropped otherwise.
func LoadSnapshot(ctx context.Context, st *storage.Store, opts Options) (*Result, error) {
	p, err := newPipeline(ctx, opts)
	if err != nil {
		return nil, err
	}
	span := trace.Begin(p.tracer, trace.ScopePhase, "snapshot", p.parent)
	defer span.End("")
	p.parent = span.ID()

	stored, ok, err := st.Meta(metaSalt)
	if err != nil {
		return nil, err
	}
	fresh := ok && bytes.Equal(stored, p.salt[:])
	if !fresh {
		trace.Point(p.tracer, trace.ScopePhase, "snapshot salt mismatch", st.Path(), p.parent)
	}

	var entries []storage.Entry
	if err := st.ForEach(func(e storage.Entry) error {
		entries = append(entries, e)
		return nil
	}); err != nil {
		return nil, err
	}

	outcomes := make([]outcome, len(entries))
	dropped := make([]bool, len(entries))
	err = p.run(ctx, len(entries), func(ctx context.Context, i int) {
		e := entries[i]
		// only an entry that fails to decode counts as recovered; a salt
		// mismatch or an unknown kind is an ordinary rebuild
		corrupt := e.Err != nil
		if fresh && e.Err == nil {
			out, ok, bad := p.decodeStored(e)
			if ok {
				outcomes[i] = out
				return
			}
			corrupt = bad
		}
		if _, err := os.Stat(filepath.Join(p.opts.Root, filepath.FromSlash(e.Path))); errors.Is(err, fs.ErrNotExist) {
			dropped[i] = true
			outcomes[i] = outcome{skip: true}
			return
		}
		outcomes[i] = p.stubOne(ctx, e.Path, corrupt)
	})
	if err != nil {
		return nil, err
	}

	res := p.collect(outcomes)
	for i, d := range dropped {
		if d {
			res.Dropped = append(res.Dropped, entries[i].Path)
		}
	}
	span.WithExtra("files", fmt.Sprint(len(res.Files))).
		WithExtra("recovered", fmt.Sprint(res.Recovered())).
		WithExtra("dropped", fmt.Sprint(len(res.Dropped)))
	return res, nil
}

// decodeStored decodes and indexes one record. corrupt reports a blob that
// failed to decode or index, as opposed to one skipped for unknown kinds.
func (p *pipeline) decodeStored(e storage.Entry) (out outcome, ok, corrupt bool) {
	kinds := make([]stub.Kind, len(e.Record.Kinds))
	for i, k := range e.Record.Kinds {
		kinds[i] = stub.Kind(k)
	}
	if !p.opts.Registry.Covers(kinds) {
		return outcome{}, false, false
	}

	start := time.Now()
	emit(p.opts.Progress, Event{File: e.Path, Stage: StageDecode, Status: StatusWorking})
	tree, err := p.opts.Registry.DecodeTree(e.Path, e.Record.Blob)
	p.opts.Timer.Since("decode", start)
	if err != nil {
		trace.Point(p.tracer, trace.ScopeFile, "stale snapshot entry", e.Path+": "+err.Error(), p.parent)
		return outcome{}, false, true
	}
	if err := p.index(e.Path, tree); err != nil {
		trace.Point(p.tracer, trace.ScopeFile, "snapshot entry failed to index", e.Path+": "+err.Error(), p.parent)
		return outcome{}, false, true
	}
	emit(p.opts.Progress, Event{File: e.Path, Stage: StageDecode, Status: StatusDone, Elapsed: time.Since(start)})
	return outcome{file: FileResult{
		Path:   e.Path,
		Digest: e.Record.Digest,
		Tree:   tree,
		Blob:   e.Record.Blob,
		From:   FromSnapshot,
	}}, true, false
}

// Persist replaces the snapshot in st with the files of res. Failed files
// are left out, so a later load rebuilds them.
func Persist(st *storage.Store, res *Result) error {
	batch := make(map[string]storage.Record, len(res.Files))
	for _, f := range res.Files {
		batch[f.Path] = recordOf(f)
	}
	if err := st.Replace(batch); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return st.SetMeta(metaSalt, res.Salt[:])
}

// Repair writes back what LoadSnapshot had to rebuild and forgets dropped
// files and files that failed to rebuild. Entries that loaded cleanly are not
// rewritten.
func Repair(st *storage.Store, res *Result) error {
	batch := make(map[string]storage.Record)
	for _, f := range res.Files {
		if f.From != FromSnapshot {
			batch[f.Path] = recordOf(f)
		}
	}
	if err := st.Put(batch); err != nil {
		return fmt.Errorf("repair snapshot: %w", err)
	}
	gone := slices.Clone(res.Dropped)
	for _, e := range res.Errors {
		gone = append(gone, e.Path)
	}
	if err := st.Delete(gone...); err != nil {
		return fmt.Errorf("repair snapshot: %w", err)
	}
	if len(batch) > 0 {
		return st.SetMeta(metaSalt, res.Salt[:])
	}
	return nil
}

func recordOf(f FileResult) storage.Record {
	return storage.Record{
		Digest: f.Digest,
		Blob:   f.Blob,
		Kinds:  KindsOf(f.Tree),
		Nodes:  f.Tree.Len(),
	}
}
