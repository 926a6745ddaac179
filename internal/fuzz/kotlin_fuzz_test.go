package fuzztests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stubtree/internal/elements"
	"stubtree/internal/index"
	"stubtree/internal/source"
	"stubtree/internal/syntax"
	"stubtree/internal/syntax/kotlin"
)

// parseTimeout is the maximum time allowed for parsing a single input.
const parseTimeout = 5 * time.Second

// FuzzKotlinStubs runs source through parse, build and encode, then checks
// the decoded tree matches the built one.
func FuzzKotlinStubs(f *testing.F) {
	addSourceSeeds(f)
	reg := elements.NewDefaultRegistry(index.DefaultPolicy())
	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > maxFuzzInput {
			input = append([]byte(nil), input[:maxFuzzInput]...)
		} else {
			input = append([]byte(nil), input...)
		}

		fset := source.NewFileSet()
		file := fset.Get(fset.AddVirtual("fuzz.kt", input))

		ctx, cancel := context.WithTimeout(context.Background(), parseTimeout)
		defer cancel()
		res, err := kotlin.Parse(ctx, file)
		if err != nil {
			require.NoError(t, ctx.Err(), "parser did not finish in %s", parseTimeout)
			return
		}

		built, err := elements.NewBuilder(reg, syntax.PackageResolver{}).BuildTree(file.Path, res.File)
		require.NoError(t, err)
		tree := reg.Enrich(built, syntax.LiteralEvaluator{})

		blob, err := reg.EncodeTree(tree)
		if err != nil {
			return
		}
		decoded, err := reg.DecodeTree(file.Path, blob)
		require.NoError(t, err)
		require.True(t, tree.Equal(decoded))

		var fresh, loaded index.Collector
		reg.IndexTree(tree, &fresh)
		reg.IndexTree(decoded, &loaded)
		require.Equal(t, fresh.Entries, loaded.Entries)
	})
}
