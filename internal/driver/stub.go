package driver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"stubtree/internal/elements"
	"stubtree/internal/index"
	"stubtree/internal/observ"
	"stubtree/internal/project"
	"stubtree/internal/source"
	"stubtree/internal/stub"
	"stubtree/internal/stubio"
	"stubtree/internal/syntax"
	"stubtree/internal/syntax/kotlin"
	"stubtree/internal/trace"
)

// ErrPanic wraps a panic raised while processing one file.
var ErrPanic = errors.New("internal error")

// ParseFunc turns a source file into its declaration tree. partial reports
// a tree recovered from syntax errors.
type ParseFunc func(ctx context.Context, f *source.File) (file syntax.Decl, partial bool, err error)

// KotlinParser is the default ParseFunc.
func KotlinParser(ctx context.Context, f *source.File) (syntax.Decl, bool, error) {
	res, err := kotlin.Parse(ctx, f)
	if err != nil {
		return nil, false, err
	}
	return res.File, res.HasErrors, nil
}

// Options configure StubFiles and LoadSnapshot.
type Options struct {
	// Root resolves relative paths; results are reported relative to it.
	Root      string
	Registry  *elements.Registry
	Resolver  syntax.Resolver       // nil: every fqName absent
	Evaluator syntax.ConstEvaluator // nil: no constants
	Parse     ParseFunc             // nil: KotlinParser
	Jobs      int                   // <= 0: GOMAXPROCS

	Index    index.Store // receives every resulting tree; may be nil
	Memory   *TreeCache
	Disk     *DiskCache
	Progress ProgressSink
	Timer    *observ.Timer
	Files    *source.FileSet // created when nil
}

// From tells where a file's tree came from.
type From uint8

const (
	FromSource From = iota
	FromMemory
	FromDisk
	FromSnapshot
)

func (f From) String() string {
	switch f {
	case FromSource:
		return "source"
	case FromMemory:
		return "memory"
	case FromDisk:
		return "disk"
	case FromSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// FileResult is one successfully stubbed file.
type FileResult struct {
	Path    string // slash-separated, relative to Options.Root
	Digest  project.Digest
	Tree    *stub.Tree
	Blob    []byte
	From    From
	Partial bool // parsed with syntax errors

	// Recovered marks a file whose cached or stored tree failed to decode
	// and was rebuilt from source.
	Recovered bool

	// Positions holds the start of each node's declaration. Only trees parsed
	// in this run have them.
	Positions map[stub.NodeID]source.LineCol
}

// FileError is a per-file failure. The file contributes no tree and no
// index entries.
type FileError struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *FileError) Error() string { return fmt.Sprintf("%s: %s: %v", e.Path, e.Stage, e.Err) }
func (e *FileError) Unwrap() error { return e.Err }

// Result collects a run over many files.
type Result struct {
	Files   []FileResult // sorted by path
	Errors  []*FileError // sorted by path
	Dropped []string     // snapshot entries whose source is gone
	Salt    project.Digest
}

// Err joins the per-file errors, nil when every file succeeded.
func (r *Result) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Recovered counts files rebuilt after a decode failure.
func (r *Result) Recovered() int {
	n := 0
	for _, f := range r.Files {
		if f.Recovered {
			n++
		}
	}
	return n
}

// File finds the result for a relative path.
func (r *Result) File(path string) (FileResult, bool) {
	i, ok := slices.BinarySearchFunc(r.Files, path, func(f FileResult, p string) int {
		switch {
		case f.Path < p:
			return -1
		case f.Path > p:
			return 1
		}
		return 0
	})
	if !ok {
		return FileResult{}, false
	}
	return r.Files[i], true
}

type outcome struct {
	file FileResult
	err  *FileError
	skip bool
}

type pipeline struct {
	opts   Options
	salt   project.Digest
	tracer trace.Tracer
	parent uint64
}

func newPipeline(ctx context.Context, opts Options) (*pipeline, error) {
	if opts.Registry == nil {
		return nil, errors.New("driver: no element registry")
	}
	if opts.Parse == nil {
		opts.Parse = KotlinParser
	}
	if opts.Resolver == nil {
		opts.Resolver = syntax.NoResolver
	}
	if opts.Files == nil {
		opts.Files = source.NewFileSetWithBase(opts.Root)
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	return &pipeline{
		opts:   opts,
		salt:   SchemaSalt(opts.Registry, opts.Evaluator != nil),
		tracer: trace.FromContext(ctx),
		parent: trace.CurrentSpan(ctx).SpanID,
	}, nil
}

// StubFiles builds, or fetches from cache, the stub tree of every file and
// indexes it. Files are processed in parallel; each file is built
// sequentially. Per-file failures land in Result.Errors; the returned error
// is reserved for cancellation and setup problems.
func StubFiles(ctx context.Context, files []string, opts Options) (*Result, error) {
	p, err := newPipeline(ctx, opts)
	if err != nil {
		return nil, err
	}
	span := trace.Begin(p.tracer, trace.ScopePhase, "stub", p.parent)
	defer span.End("")
	p.parent = span.ID()

	for _, f := range files {
		emit(p.opts.Progress, Event{File: f, Status: StatusQueued})
	}
	outcomes := make([]outcome, len(files))
	err = p.run(ctx, len(files), func(ctx context.Context, i int) {
		outcomes[i] = p.stubOne(ctx, files[i], false)
	})
	if err != nil {
		return nil, err
	}
	res := p.collect(outcomes)
	span.WithExtra("files", fmt.Sprint(len(res.Files))).WithExtra("errors", fmt.Sprint(len(res.Errors)))
	return res, nil
}

// run calls fn for 0..n-1 on at most Jobs goroutines.
func (p *pipeline) run(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	if n == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(p.opts.Jobs, n))
	for i := range n {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			fn(gctx, i)
			return nil
		})
	}
	return g.Wait()
}

func (p *pipeline) collect(outcomes []outcome) *Result {
	res := &Result{Salt: p.salt}
	for _, o := range outcomes {
		switch {
		case o.skip:
		case o.err != nil:
			res.Errors = append(res.Errors, o.err)
		default:
			res.Files = append(res.Files, o.file)
		}
	}
	slices.SortFunc(res.Files, func(a, b FileResult) int { return compareStrings(a.Path, b.Path) })
	slices.SortFunc(res.Errors, func(a, b *FileError) int { return compareStrings(a.Path, b.Path) })
	return res
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// locate returns the path to read and the path to report.
func (p *pipeline) locate(path string) (abs, rel string) {
	abs = path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(p.opts.Root, filepath.FromSlash(path))
	}
	rel, err := source.RelativePath(abs, p.opts.Root)
	if err != nil {
		rel = filepath.ToSlash(path)
	}
	return abs, rel
}

func (p *pipeline) stubOne(ctx context.Context, path string, recovered bool) (out outcome) {
	abs, rel := p.locate(path)
	stage := StageLoad
	start := time.Now()
	span := trace.Begin(p.tracer, trace.ScopeFile, "file:"+rel, p.parent)

	fail := func(err error) outcome {
		emit(p.opts.Progress, Event{File: path, Stage: stage, Status: StatusError, Err: err, Elapsed: time.Since(start)})
		span.End("error: " + err.Error())
		return outcome{err: &FileError{Path: rel, Stage: stage, Err: err}}
	}
	defer func() {
		if r := recover(); r != nil {
			out = fail(fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()
	working := func(s Stage) {
		stage = s
		emit(p.opts.Progress, Event{File: path, Stage: s, Status: StatusWorking, Elapsed: time.Since(start)})
	}

	working(StageLoad)
	id, err := p.opts.Files.Load(abs)
	if err != nil {
		return fail(err)
	}
	src := p.opts.Files.Get(id)
	key := cacheKey(src.Hash, p.salt)
	fr := FileResult{Path: rel, Digest: src.Hash, Recovered: recovered}

	working(StageCache)
	if tree, blob, ok := p.opts.Memory.Get(key); ok {
		fr.Tree, fr.Blob, fr.From = tree, blob, FromMemory
	} else if tree, blob, stale := p.fromDisk(key, rel); tree != nil {
		fr.Tree, fr.Blob, fr.From = tree, blob, FromDisk
		p.opts.Memory.Put(key, tree, blob)
	} else {
		fr.Recovered = fr.Recovered || stale
		fr.From = FromSource
		if err := p.build(ctx, src, rel, key, &fr, working); err != nil {
			return fail(err)
		}
	}

	working(StageIndex)
	if err := p.index(rel, fr.Tree); err != nil {
		return fail(err)
	}

	emit(p.opts.Progress, Event{File: path, Stage: StageIndex, Status: StatusDone, Elapsed: time.Since(start)})
	span.WithExtra("from", fr.From.String()).WithExtra("nodes", fmt.Sprint(fr.Tree.Len())).End("")
	return outcome{file: fr}
}

// fromDisk returns a decoded tree, or stale=true when an entry existed but
// no longer decodes. Stale entries are removed.
func (p *pipeline) fromDisk(key project.Digest, rel string) (tree *stub.Tree, blob []byte, stale bool) {
	if p.opts.Disk == nil {
		return nil, nil, false
	}
	var payload DiskPayload
	ok, err := p.opts.Disk.Get(key, &payload)
	if err != nil {
		trace.Point(p.tracer, trace.ScopeFile, "cache read failed", err.Error(), p.parent)
		return nil, nil, false
	}
	if !ok {
		return nil, nil, false
	}
	start := time.Now()
	tree, err = p.opts.Registry.DecodeTree(rel, payload.Blob)
	p.opts.Timer.Since("decode", start)
	if err != nil {
		trace.Point(p.tracer, trace.ScopeFile, "stale cache entry", rel+": "+err.Error(), p.parent)
		_ = p.opts.Disk.Remove(key)
		return nil, nil, stubio.IsDecodeError(err)
	}
	return tree, payload.Blob, false
}

func (p *pipeline) build(ctx context.Context, src *source.File, rel string, key project.Digest, fr *FileResult, working func(Stage)) error {
	reg := p.opts.Registry

	working(StageParse)
	start := time.Now()
	decl, partial, err := p.opts.Parse(ctx, src)
	p.opts.Timer.Since("parse", start)
	if err != nil {
		return err
	}
	fr.Partial = partial

	working(StageBuild)
	start = time.Now()
	built, err := elements.NewBuilder(reg, p.opts.Resolver).BuildTree(rel, decl)
	if err != nil {
		return err
	}
	tree := reg.Enrich(built, p.opts.Evaluator)
	p.opts.Timer.Since("build", start)
	fr.Positions = make(map[stub.NodeID]source.LineCol, len(built.Decls))
	for id, d := range built.Decls {
		fr.Positions[id], _ = p.opts.Files.Resolve(d.Span())
	}

	working(StageEncode)
	start = time.Now()
	blob, err := reg.EncodeTree(tree)
	p.opts.Timer.Since("encode", start)
	if err != nil {
		return err
	}
	fr.Tree, fr.Blob = tree, blob

	p.opts.Memory.Put(key, tree, blob)
	err = p.opts.Disk.Put(key, &DiskPayload{
		Path:   rel,
		Digest: src.Hash,
		Blob:   blob,
		Kinds:  KindsOf(tree),
		Nodes:  tree.Len(),
	})
	if err != nil {
		// the cache is an optimisation; the tree itself is fine
		trace.Point(p.tracer, trace.ScopeFile, "cache write failed", err.Error(), p.parent)
	}
	return nil
}

type fileRemover interface {
	RemoveFile(path string)
}

// index replaces the entries of rel with those of tree. A panicking element
// type leaves no entries for rel behind.
func (p *pipeline) index(rel string, tree *stub.Tree) (err error) {
	if p.opts.Index == nil {
		return nil
	}
	start := time.Now()
	remover, canRemove := p.opts.Index.(fileRemover)
	if canRemove {
		remover.RemoveFile(rel)
	}
	defer func() {
		if r := recover(); r != nil {
			if canRemove {
				remover.RemoveFile(rel)
			}
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	p.opts.Registry.IndexTree(tree, index.ForFile(p.opts.Index, rel))
	p.opts.Timer.Since("index", start)
	return nil
}

// KindsOf lists the distinct kinds in a tree, sorted.
func KindsOf(tree *stub.Tree) []string {
	seen := make(map[stub.Kind]struct{})
	tree.Walk(func(n *stub.Node, _ int) bool {
		seen[n.Kind()] = struct{}{}
		return true
	})
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k.String())
	}
	slices.Sort(out)
	return out
}
