package driver_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"stubtree/internal/config"
	"stubtree/internal/driver"
	"stubtree/internal/elements"
	"stubtree/internal/index"
	"stubtree/internal/observ"
	"stubtree/internal/source"
	"stubtree/internal/storage"
	"stubtree/internal/stub"
	"stubtree/internal/syntax"
	"stubtree/internal/testkit"
)

var errSyntax = errors.New("cannot parse")

// lineParser understands a toy format, one declaration per line:
//
//	package geo
//	class Shape
//	val area
//	var count
//	const LIMIT 10
//	fun scale
//	object Registry
//	typealias Shapes
//
// "fail" makes it return an error, "boom" makes it panic.
type lineParser struct {
	calls atomic.Int32
}

func (p *lineParser) Parse(_ context.Context, f *source.File) (syntax.Decl, bool, error) {
	p.calls.Add(1)
	lines := strings.Split(strings.TrimSpace(string(f.Content)), "\n")
	pkg := ""
	if len(lines) > 0 && strings.HasPrefix(lines[0], "package ") {
		pkg = strings.TrimPrefix(lines[0], "package ")
		lines = lines[1:]
	}
	file := syntax.NewFile(filepath.Base(f.Path), pkg, false)
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "fail":
			return nil, false, errSyntax
		case "boom":
			panic("parser blew up")
		case "class":
			file.Add(syntax.DeclClass, syntax.Attrs{Name: fields[1], Body: true})
		case "object":
			file.Add(syntax.DeclObject, syntax.Attrs{Name: fields[1], Body: true})
		case "fun":
			file.Add(syntax.DeclFunction, syntax.Attrs{Name: fields[1], Body: true})
		case "typealias":
			file.Add(syntax.DeclTypeAlias, syntax.Attrs{Name: fields[1]})
		case "val", "var":
			file.Add(syntax.DeclProperty, syntax.Attrs{Name: fields[1], Var: fields[0] == "var"})
		case "const":
			file.Add(syntax.DeclProperty, syntax.Attrs{
				Name:        fields[1],
				Modifiers:   syntax.ModConst,
				Initializer: true,
				Literal:     syntax.Literal{Kind: syntax.LitInt, Text: fields[2]},
			})
		}
	}
	return file, false, nil
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
}

type fixture struct {
	root   string
	parser *lineParser
	store  *index.MemoryStore
	opts   driver.Options
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, files)
	f := &fixture{root: root, parser: &lineParser{}, store: index.NewMemoryStore()}
	f.opts = driver.Options{
		Root:     root,
		Registry: elements.NewDefaultRegistry(index.DefaultPolicy()),
		Resolver: syntax.PackageResolver{},
		Parse:    f.parser.Parse,
		Jobs:     4,
		Index:    f.store,
	}
	return f
}

func (f *fixture) paths() []string {
	m, _ := config.NewMatcher(config.DefaultInclude, config.DefaultExclude)
	paths, err := driver.Discover(f.root, m)
	if err != nil {
		panic(err)
	}
	return paths
}

func (f *fixture) stub(t *testing.T) *driver.Result {
	t.Helper()
	res, err := driver.StubFiles(context.Background(), f.paths(), f.opts)
	require.NoError(t, err)
	return res
}

func froms(res *driver.Result) map[string]driver.From {
	out := make(map[string]driver.From, len(res.Files))
	for _, f := range res.Files {
		out[f.Path] = f.From
	}
	return out
}

var sampleFiles = map[string]string{
	"src/geo/Shape.kt":  "package geo\nclass Shape\nval area\nconst LIMIT 10\n",
	"src/geo/Util.kt":   "package geo\nfun scale\ntypealias Shapes\n",
	"src/app/Main.kt":   "package app\nobject Registry\nvar count\n",
	"build/gen/Skip.kt": "package gen\nclass Generated\n",
	"README.md":         "not kotlin",
}

func TestDiscoverHonoursMatcher(t *testing.T) {
	f := newFixture(t, sampleFiles)
	assert.Equal(t, []string{"src/app/Main.kt", "src/geo/Shape.kt", "src/geo/Util.kt"}, f.paths())
}

func TestStubFilesBuildsAndIndexes(t *testing.T) {
	f := newFixture(t, sampleFiles)
	res := f.stub(t)

	require.NoError(t, res.Err())
	require.Len(t, res.Files, 3)
	assert.Equal(t, "src/app/Main.kt", res.Files[0].Path)
	assert.Equal(t, "src/geo/Util.kt", res.Files[2].Path)
	for _, file := range res.Files {
		assert.Equal(t, driver.FromSource, file.From)
		require.NoError(t, testkit.CheckTreeInvariants(file.Tree))
		assert.NotEmpty(t, file.Blob)
		assert.False(t, file.Digest.IsZero())
		assert.Len(t, file.Positions, file.Tree.Len())
	}

	assert.Equal(t, []string{"Shape"}, f.store.Keys(index.ClassShort))
	assert.Equal(t, []string{"app.Registry"}, f.store.Keys(index.ObjectFqName))
	assert.Equal(t, []string{"LIMIT", "area", "count"}, f.store.Keys(index.PropertyShort))
	assert.Equal(t, []string{"app", "geo"}, f.store.Keys(index.FilePackage))
	assert.Equal(t, []string{"geo.Shapes"}, f.store.Keys(index.TypeAliasTopLevelFq))

	refs := f.store.Lookup(index.Key{Index: index.FunctionShort, Value: "scale"})
	require.Len(t, refs, 1)
	assert.Equal(t, "src/geo/Util.kt", refs[0].File)

	shape, ok := res.File("src/geo/Shape.kt")
	require.True(t, ok)
	assert.Equal(t, []string{"class", "file", "property"}, driver.KindsOf(shape.Tree))
	_, ok = res.File("src/geo/Missing.kt")
	assert.False(t, ok)
}

func TestStubFilesAttachesConstantsWithEvaluator(t *testing.T) {
	f := newFixture(t, map[string]string{"A.kt": "package p\nconst LIMIT 10\n"})
	plain := f.stub(t)

	f.opts.Evaluator = syntax.LiteralEvaluator{}
	enriched := f.stub(t)

	constOf := func(res *driver.Result) bool {
		found := false
		for _, n := range res.Files[0].Tree.Nodes() {
			if _, ok := n.Constant(); ok {
				found = true
			}
		}
		return found
	}
	assert.False(t, constOf(plain))
	assert.True(t, constOf(enriched))
	assert.NotEqual(t, plain.Salt, enriched.Salt)
}

func TestStubFilesMemoryCache(t *testing.T) {
	f := newFixture(t, sampleFiles)
	cache, err := driver.NewTreeCache(64)
	require.NoError(t, err)
	defer cache.Close()
	f.opts.Memory = cache
	f.opts.Files = source.NewFileSetWithBase(f.root)

	f.stub(t)
	require.EqualValues(t, 3, f.parser.calls.Load())

	res := f.stub(t)
	assert.EqualValues(t, 3, f.parser.calls.Load(), "second run is served from memory")
	for path, from := range froms(res) {
		assert.Equal(t, driver.FromMemory, from, path)
	}
	assert.Equal(t, []string{"Shape"}, f.store.Keys(index.ClassShort))
}

func TestStubFilesDiskCache(t *testing.T) {
	f := newFixture(t, sampleFiles)
	disk, err := driver.OpenDiskCache(t.TempDir(), "stubtree")
	require.NoError(t, err)
	f.opts.Disk = disk

	first := f.stub(t)
	second := f.stub(t)

	assert.EqualValues(t, 3, f.parser.calls.Load())
	for path, from := range froms(second) {
		assert.Equal(t, driver.FromDisk, from, path)
	}
	for i := range first.Files {
		assert.Equal(t, first.Files[i].Blob, second.Files[i].Blob)
		assert.True(t, first.Files[i].Tree.Equal(second.Files[i].Tree))
	}

	// touching one file invalidates only that file
	writeFiles(t, f.root, map[string]string{"src/geo/Util.kt": "package geo\nfun rotate\n"})
	third := f.stub(t)
	assert.Equal(t, driver.FromSource, froms(third)["src/geo/Util.kt"])
	assert.Equal(t, driver.FromDisk, froms(third)["src/geo/Shape.kt"])
	assert.Equal(t, []string{"rotate"}, f.store.Keys(index.FunctionShort), "stale entries of a rebuilt file are removed")
}

func TestStubFilesRebuildsCorruptDiskEntry(t *testing.T) {
	f := newFixture(t, map[string]string{"A.kt": "package p\nclass A\n"})
	disk, err := driver.OpenDiskCache(t.TempDir(), "stubtree")
	require.NoError(t, err)
	f.opts.Disk = disk
	f.stub(t)

	var entries []string
	require.NoError(t, filepath.WalkDir(disk.Dir(), func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.HasSuffix(path, ".mp") {
			entries = append(entries, path)
		}
		return err
	}))
	require.Len(t, entries, 1)

	raw, err := os.ReadFile(entries[0])
	require.NoError(t, err)
	var payload driver.DiskPayload
	require.NoError(t, msgpack.Unmarshal(raw, &payload))
	payload.Blob[len(payload.Blob)/2] ^= 0xff
	raw, err = msgpack.Marshal(&payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(entries[0], raw, 0o600))

	res := f.stub(t)
	require.Len(t, res.Files, 1)
	assert.Equal(t, driver.FromSource, res.Files[0].From)
	assert.True(t, res.Files[0].Recovered)
	assert.Equal(t, 1, res.Recovered())
	assert.EqualValues(t, 2, f.parser.calls.Load())

	again := f.stub(t)
	assert.Equal(t, driver.FromDisk, again.Files[0].From, "the rebuilt tree replaced the bad entry")
}

func TestStubFilesIsolatesFailures(t *testing.T) {
	f := newFixture(t, map[string]string{
		"Good.kt":  "package p\nclass Good\n",
		"Bad.kt":   "package p\nclass Half\nfail\n",
		"Panic.kt": "package p\nclass Boom\nboom\n",
	})
	paths := append(f.paths(), "Missing.kt")
	res, err := driver.StubFiles(context.Background(), paths, f.opts)
	require.NoError(t, err)

	require.Len(t, res.Files, 1)
	assert.Equal(t, "Good.kt", res.Files[0].Path)
	require.Len(t, res.Errors, 3)

	byPath := map[string]*driver.FileError{}
	for _, e := range res.Errors {
		byPath[e.Path] = e
	}
	assert.ErrorIs(t, byPath["Bad.kt"], errSyntax)
	assert.Equal(t, driver.StageParse, byPath["Bad.kt"].Stage)
	assert.ErrorIs(t, byPath["Panic.kt"], driver.ErrPanic)
	assert.Equal(t, driver.StageLoad, byPath["Missing.kt"].Stage)
	assert.ErrorIs(t, byPath["Missing.kt"], fs.ErrNotExist)

	assert.Error(t, res.Err())
	assert.Equal(t, []string{"Good"}, f.store.Keys(index.ClassShort), "failed files leave no index entries")
	assert.Equal(t, []string{"Good.kt"}, f.store.Files())
}

func TestStubFilesReportsProgress(t *testing.T) {
	f := newFixture(t, sampleFiles)
	var (
		mu   sync.Mutex
		last = map[string]driver.Event{}
		seen = map[driver.Status]int{}
	)
	f.opts.Progress = driver.SinkFunc(func(e driver.Event) {
		mu.Lock()
		defer mu.Unlock()
		last[e.File] = e
		seen[e.Status]++
	})
	f.opts.Timer = observ.NewTimer()
	f.stub(t)

	assert.Len(t, last, 3)
	for file, e := range last {
		assert.Equal(t, driver.StatusDone, e.Status, file)
	}
	assert.Equal(t, 3, seen[driver.StatusQueued])

	names := map[string]int{}
	for _, ph := range f.opts.Timer.Report().Phases {
		names[ph.Name] = ph.Count
	}
	assert.Equal(t, 3, names["parse"])
	assert.Equal(t, 3, names["build"])
	assert.Equal(t, 3, names["index"])
}

func TestStubFilesCancelled(t *testing.T) {
	f := newFixture(t, sampleFiles)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := driver.StubFiles(ctx, f.paths(), f.opts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStubFilesNeedsRegistry(t *testing.T) {
	_, err := driver.StubFiles(context.Background(), nil, driver.Options{})
	assert.Error(t, err)
}

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	st, err := storage.Open(filepath.Join(t.TempDir(), "stubs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSnapshotRoundTrip(t *testing.T) {
	f := newFixture(t, sampleFiles)
	built := f.stub(t)
	st := openStore(t)
	require.NoError(t, driver.Persist(st, built))

	loadedIndex := index.NewMemoryStore()
	opts := f.opts
	opts.Index = loadedIndex
	loaded, err := driver.LoadSnapshot(context.Background(), st, opts)
	require.NoError(t, err)

	assert.EqualValues(t, 3, f.parser.calls.Load(), "loading never parses")
	require.Len(t, loaded.Files, 3)
	for i, file := range loaded.Files {
		assert.Equal(t, driver.FromSnapshot, file.From)
		assert.Equal(t, built.Files[i].Path, file.Path)
		assert.Equal(t, built.Files[i].Digest, file.Digest)
		assert.True(t, built.Files[i].Tree.Equal(file.Tree))
	}
	for _, id := range index.All {
		assert.Equal(t, f.store.Keys(id), loadedIndex.Keys(id), id.String())
	}
}

func TestPersistReplacesPreviousSnapshot(t *testing.T) {
	f := newFixture(t, sampleFiles)
	st := openStore(t)
	require.NoError(t, driver.Persist(st, f.stub(t)))

	require.NoError(t, os.Remove(filepath.Join(f.root, "src", "app", "Main.kt")))
	require.NoError(t, driver.Persist(st, f.stub(t)))

	paths, err := st.Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{"src/geo/Shape.kt", "src/geo/Util.kt"}, paths)
}

func TestSnapshotSaltMismatchRebuilds(t *testing.T) {
	f := newFixture(t, sampleFiles)
	st := openStore(t)
	require.NoError(t, driver.Persist(st, f.stub(t)))

	f.opts.Evaluator = syntax.LiteralEvaluator{}
	res, err := driver.LoadSnapshot(context.Background(), st, f.opts)
	require.NoError(t, err)
	require.Len(t, res.Files, 3)
	assert.Equal(t, 0, res.Recovered(), "a salt change is a rebuild, not a recovery")
	for _, file := range res.Files {
		assert.Equal(t, driver.FromSource, file.From)
	}

	require.NoError(t, driver.Repair(st, res))
	again, err := driver.LoadSnapshot(context.Background(), st, f.opts)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Recovered())
}

func TestSnapshotRecoversCorruptAndDropsMissing(t *testing.T) {
	f := newFixture(t, map[string]string{"A.kt": "package p\nclass A\n", "B.kt": "package p\nclass B\n"})
	st := openStore(t)
	built := f.stub(t)
	require.NoError(t, driver.Persist(st, built))

	a, ok := built.File("A.kt")
	require.True(t, ok)
	bad := append([]byte(nil), a.Blob...)
	bad[len(bad)-1] ^= 0x01
	require.NoError(t, st.Put(map[string]storage.Record{
		"A.kt":    {Digest: a.Digest, Blob: bad, Kinds: []string{"class", "file"}, Nodes: 2},
		"Gone.kt": {Digest: a.Digest, Blob: bad, Kinds: []string{"class", "file"}, Nodes: 2},
	}))

	res, err := driver.LoadSnapshot(context.Background(), st, f.opts)
	require.NoError(t, err)
	assert.Equal(t, map[string]driver.From{"A.kt": driver.FromSource, "B.kt": driver.FromSnapshot}, froms(res))
	assert.Equal(t, 1, res.Recovered())
	assert.Equal(t, []string{"Gone.kt"}, res.Dropped)
	assert.Equal(t, []string{"A", "B"}, f.store.Keys(index.ClassShort))

	require.NoError(t, driver.Repair(st, res))
	paths, err := st.Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{"A.kt", "B.kt"}, paths)

	rec, ok, err := st.Get("A.kt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a.Blob, rec.Blob)
}

func TestSnapshotUnknownKindsRebuild(t *testing.T) {
	f := newFixture(t, map[string]string{"A.kt": "package p\nclass A\n"})
	st := openStore(t)
	require.NoError(t, driver.Persist(st, f.stub(t)))

	rec, ok, err := st.Get("A.kt")
	require.NoError(t, err)
	require.True(t, ok)
	rec.Kinds = append(rec.Kinds, "enumEntry")
	require.NoError(t, st.Put(map[string]storage.Record{"A.kt": rec}))

	res, err := driver.LoadSnapshot(context.Background(), st, f.opts)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, driver.FromSource, res.Files[0].From)
	assert.False(t, res.Files[0].Recovered, "unknown kinds are rebuilt, not recovered")
}

func TestTimingPayload(t *testing.T) {
	timer := observ.NewTimer()
	idx := timer.Begin("discover")
	timer.End(idx, "")

	var b strings.Builder
	require.NoError(t, driver.NewTimingPayload("", "/src", 3, timer).WriteJSON(&b))
	assert.Contains(t, b.String(), `"kind":"build"`)
	assert.Contains(t, b.String(), `"files":3`)
	assert.Contains(t, b.String(), `"name":"discover"`)
}

// explodingClass indexes like a class, then panics on the class named Boom.
type explodingClass struct {
	*elements.ClassType
}

func (c explodingClass) IndexStub(n *stub.Node, sink index.Sink) {
	c.ClassType.IndexStub(n, sink)
	if name, _ := n.Name(); name == "Boom" {
		panic("index blew up")
	}
}

func TestIndexPanicLeavesNoEntries(t *testing.T) {
	f := newFixture(t, map[string]string{
		"Bad.kt":  "package bad\nval x\nclass Boom\n",
		"Good.kt": "package good\nclass Fine\n",
	})
	reg := elements.NewRegistry()
	reg.MustRegister(elements.NewFileType(index.DefaultPolicy()))
	reg.MustRegister(elements.NewPropertyType(index.DefaultPolicy()))
	reg.MustRegister(explodingClass{elements.NewClassType()})
	f.opts.Registry = reg
	f.opts.Jobs = 1

	res := f.stub(t)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Bad.kt", res.Errors[0].Path)
	assert.Equal(t, driver.StageIndex, res.Errors[0].Stage)
	assert.ErrorIs(t, res.Errors[0], driver.ErrPanic)

	assert.Equal(t, []string{"Good.kt"}, f.store.Files())
	assert.Equal(t, []string{"Fine"}, f.store.Keys(index.ClassShort))
	assert.Equal(t, []string{"good"}, f.store.Keys(index.FilePackage))
	assert.Empty(t, f.store.Keys(index.PropertyShort))
}
