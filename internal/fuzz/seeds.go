package fuzztests

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"stubtree/internal/elements"
	"stubtree/internal/index"
	"stubtree/internal/source"
	"stubtree/internal/syntax"
	"stubtree/internal/syntax/kotlin"
)

const (
	maxSeedBytes = 64 << 10 // 64 KiB, ограничение для тестового корпуса
)

var builtinSeeds = []string{
	"",
	"package a.b\n",
	"const val X = 1\n",
	"class A { companion object { const val Y = \"y\" } }\n",
	"fun <T> T.ext(): Int = 0\n",
	"val (a, b) = 1 to 2\n",
	"object : Runnable { override fun run() {} }\n",
	"typealias F<T> = (T) -> Unit\n",
	"var `weird name`: Int = 0\n",
	"class Broken(val x: Int {\n",
}

// kotlinSeeds returns testdata sources plus a few fixed snippets.
func kotlinSeeds() [][]byte {
	var out [][]byte
	root := filepath.Join("..", "..", "testdata", "kotlin")
	// проходим по testdata, берём *.kt и *.kts
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(path); ext != ".kt" && ext != ".kts" {
			return nil
		}
		// #nosec G304 -- path comes from repository testdata walk
		src, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		out = append(out, clampSeed(src))
		return nil
	})
	for _, s := range builtinSeeds {
		out = append(out, []byte(s))
	}
	return out
}

func addSourceSeeds(f *testing.F) {
	for _, seed := range kotlinSeeds() {
		f.Add(seed)
	}
}

// addBlobSeeds encodes every parseable source seed so the decoder starts from
// valid streams.
func addBlobSeeds(f *testing.F) {
	reg := elements.NewDefaultRegistry(index.DefaultPolicy())
	for _, seed := range kotlinSeeds() {
		fset := source.NewFileSet()
		file := fset.Get(fset.AddVirtual("seed.kt", seed))
		res, err := kotlin.Parse(context.Background(), file)
		if err != nil {
			continue
		}
		built, err := elements.NewBuilder(reg, syntax.PackageResolver{}).BuildTree(file.Path, res.File)
		if err != nil {
			continue
		}
		blob, err := reg.EncodeTree(reg.Enrich(built, syntax.LiteralEvaluator{}))
		if err != nil {
			continue
		}
		f.Add(blob)
	}
	f.Add([]byte{})
	f.Add([]byte("STUB"))
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}
