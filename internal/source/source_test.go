package source

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternerBasic(t *testing.T) {
	interner := NewInterner()

	// NoStringID зарезервирован для пустой строки
	s, ok := interner.Lookup(NoStringID)
	require.True(t, ok)
	assert.Equal(t, "", s)

	id1 := interner.Intern("hello")
	assert.NotEqual(t, NoStringID, id1)
	assert.Equal(t, id1, interner.Intern("hello"))
	assert.NotEqual(t, id1, interner.Intern("world"))
	assert.Equal(t, 3, interner.Len())
	assert.Equal(t, "hello", interner.MustLookup(id1))
	assert.False(t, interner.Has(StringID(99)))
	assert.Panics(t, func() { interner.MustLookup(StringID(99)) })
}

func TestInternerFindDoesNotInsert(t *testing.T) {
	interner := NewInterner()
	_, ok := interner.Find("pkg.Foo")
	assert.False(t, ok)
	assert.Equal(t, 1, interner.Len())

	id := interner.Intern("pkg.Foo")
	found, ok := interner.Find("pkg.Foo")
	require.True(t, ok)
	assert.Equal(t, id, found)
}

func TestInternerConcurrentIntern(t *testing.T) {
	interner := NewInterner()
	const workers = 8
	ids := make([][]StringID, workers)

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				ids[w] = append(ids[w], interner.Intern(fmt.Sprintf("name%d", i)))
			}
		}()
	}
	wg.Wait()

	for w := 1; w < workers; w++ {
		assert.Equal(t, ids[0], ids[w], "every goroutine must observe the same IDs")
	}
	assert.Equal(t, 101, interner.Len())
	assert.Len(t, interner.Snapshot(), 101)
}

func TestFileSetVersioning(t *testing.T) {
	fs := NewFileSet()

	id1 := fs.Add("src/Test.kt", []byte("val a = 1"), 0)
	id2 := fs.Add("src/Test.kt", []byte("val a = 2"), 0)
	require.NotEqual(t, id1, id2)

	latest, ok := fs.GetLatest("src/Test.kt")
	require.True(t, ok)
	assert.Equal(t, id2, latest)
	assert.Equal(t, "val a = 1", string(fs.Get(id1).Content))
	assert.Equal(t, sha256.Sum256([]byte("val a = 2")), fs.Get(id2).Hash)
	assert.Nil(t, fs.Get(FileID(42)))
	assert.Equal(t, 2, fs.Len())
}

func TestFileSetLoadNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Crlf.kt")
	require.NoError(t, os.WriteFile(path, []byte("\xEF\xBB\xBFval a = 1\r\nval b = 2\r\n"), 0o600))

	fs := NewFileSetWithBase(dir)
	id, err := fs.Load(path)
	require.NoError(t, err)

	f := fs.Get(id)
	assert.Equal(t, "val a = 1\nval b = 2\n", string(f.Content))
	assert.Equal(t, FileHadBOM|FileNormalizedCRLF, f.Flags)

	start, end := fs.Resolve(Span{File: id, Start: 10, End: 13})
	assert.Equal(t, LineCol{Line: 2, Col: 1}, start)
	assert.Equal(t, LineCol{Line: 2, Col: 4}, end)
}

func TestFileSetLoadMissing(t *testing.T) {
	_, err := NewFileSet().Load(filepath.Join(t.TempDir(), "nope.kt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 4, End: 8}
	b := Span{File: 1, Start: 2, End: 6}
	assert.Equal(t, Span{File: 1, Start: 2, End: 8}, a.Cover(b))
	assert.Equal(t, a, a.Cover(Span{File: 2, Start: 0, End: 20}))
	assert.True(t, a.Cover(b).Contains(a))
	assert.False(t, a.Contains(b))
	assert.Equal(t, uint32(4), a.Len())
}

func TestRelativePath(t *testing.T) {
	base := t.TempDir()
	got, err := RelativePath(filepath.Join(base, "a", "B.kt"), base)
	require.NoError(t, err)
	assert.Equal(t, "a/B.kt", got)

	outside, err := RelativePath(filepath.Join(filepath.Dir(base), "C.kt"), base)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(filepath.FromSlash(outside)))
}
