package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shapesKt = `package geo

const val LIMIT = 10

class Shape {
    val area: Double = 0.0

    fun scale(by: Double): Shape = this
}

typealias Shapes = List<Shape>
`

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--color", "off"}, args...))
	err := root.Execute()
	runCleanups()
	return out.String(), errOut.String(), err
}

func newProject(t *testing.T) (root, manifest, file string) {
	t.Helper()
	root = t.TempDir()
	manifest = filepath.Join(root, "stubtree.toml")
	require.NoError(t, os.WriteFile(manifest, []byte("[cache]\ndir = \"cache\"\n"), 0o600))
	file = filepath.Join(root, "src", "geo", "Shapes.kt")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte(shapesKt), 0o600))
	return root, manifest, file
}

func TestBuildFindStatsClean(t *testing.T) {
	root, manifest, file := newProject(t)

	out, _, err := runCLI(t, "build", root, "--ui", "off")
	require.NoError(t, err)
	assert.Contains(t, out, "stubbed 1 files (1 parsed, 0 cached, 0 recovered)")
	assert.FileExists(t, filepath.Join(root, ".stubtree", "stubs.db"))

	out, _, err = runCLI(t, "build", root, "--ui", "off")
	require.NoError(t, err)
	assert.Contains(t, out, "(0 parsed, 1 cached, 0 recovered)")

	out, _, err = runCLI(t, "--config", manifest, "find", "Shape", "--format", "json")
	require.NoError(t, err)
	var hits []findHit
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, findHit{Index: "class.short", File: "src/geo/Shapes.kt", Kind: "class", Name: "Shape", FqName: "geo.Shape"}, hits[0])

	out, _, err = runCLI(t, "--config", manifest, "find", "geo.LIMIT", "--index", "property.toplevel.fqname")
	require.NoError(t, err)
	assert.Contains(t, out, "src/geo/Shapes.kt property geo.LIMIT")

	_, _, err = runCLI(t, "--config", manifest, "find", "Shape", "--index", "nope")
	assert.ErrorContains(t, err, "unknown index")

	out, _, err = runCLI(t, "--config", manifest, "stats", "--format", "json")
	require.NoError(t, err)
	var report statsReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, 1, report.Kinds["class"])
	assert.Equal(t, 2, report.Kinds["property"])
	assert.Positive(t, report.EncodedBytes)

	out, _, err = runCLI(t, "--config", manifest, "dump", file, "--stored", "--check")
	require.NoError(t, err)
	assert.Contains(t, out, "class Shape geo.Shape")
	assert.Contains(t, out, "property LIMIT geo.LIMIT")
	assert.Contains(t, out, "= 10")

	out, _, err = runCLI(t, "clean", root)
	require.NoError(t, err)
	assert.Contains(t, out, "removed .stubtree/stubs.db")
	assert.Contains(t, out, "cleared cache")
	assert.NoFileExists(t, filepath.Join(root, ".stubtree", "stubs.db"))

	_, _, err = runCLI(t, "--config", manifest, "find", "Shape")
	assert.ErrorIs(t, err, errNoSnapshot)
}

func TestDumpFromSource(t *testing.T) {
	_, _, file := newProject(t)

	out, _, err := runCLI(t, "dump", file, "--format", "json", "--check")
	require.NoError(t, err)
	var dumped dumpFile
	require.NoError(t, json.Unmarshal([]byte(out), &dumped))
	assert.Equal(t, "src/geo/Shapes.kt", dumped.Path)
	require.NotNil(t, dumped.Root)
	assert.Equal(t, "file", dumped.Root.Kind)
	assert.Equal(t, "geo", dumped.Root.FqName)

	var names []string
	for _, c := range dumped.Root.Children {
		names = append(names, c.Kind+":"+c.Name)
	}
	assert.Equal(t, []string{"property:LIMIT", "class:Shape", "typealias:Shapes"}, names)
	assert.Equal(t, "10", dumped.Root.Children[0].Constant)
	assert.Equal(t, uint32(3), dumped.Root.Children[0].Line)
	assert.Equal(t, uint32(5), dumped.Root.Children[1].Line)
	assert.Equal(t, uint32(1), dumped.Root.Children[1].Col)
}

func TestBuildRejectsBadFlags(t *testing.T) {
	root, _, _ := newProject(t)
	_, _, err := runCLI(t, "build", root, "--ui", "sometimes")
	assert.ErrorContains(t, err, "invalid --ui value")

	_, _, err = runCLI(t, "build", root, "--format", "xml")
	assert.ErrorContains(t, err, "unsupported format")

	_, _, err = runCLI(t, "--trace-level", "loud", "build", root, "--ui", "off")
	assert.Error(t, err)
}

func TestVersionJSON(t *testing.T) {
	out, _, err := runCLI(t, "version", "--format", "json")
	require.NoError(t, err)
	var payload versionPayload
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "stubtree", payload.Tool)
	assert.Equal(t, 1, payload.StubFormat)
	assert.Contains(t, payload.Kinds, "property")
}

func TestFormatPathForOutput(t *testing.T) {
	assert.Equal(t, "a/b.kt", formatPathForOutput("/root", "/root/a/b.kt"))
	assert.Equal(t, "/elsewhere/b.kt", formatPathForOutput("/root", "/elsewhere/b.kt"))
	assert.Equal(t, "x", formatPathForOutput("", "x"))
}

func TestProfilingFlagsWriteProfiles(t *testing.T) {
	root, _, _ := newProject(t)
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.pprof")
	mem := filepath.Join(dir, "mem.pprof")

	_, _, err := runCLI(t, "--cpu-profile", cpu, "--mem-profile", mem, "--quiet", "build", root, "--ui", "off")
	require.NoError(t, err)
	for _, path := range []string{cpu, mem} {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.Positive(t, info.Size(), path)
	}
}
