package elements

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stubtree/internal/index"
	"stubtree/internal/stub"
	"stubtree/internal/stubio"
	"stubtree/internal/syntax"
)

// treeWith returns a tree holding a file root and one node with data.
func treeWith(data stub.Data) (*stub.Tree, *stub.Node) {
	t := stub.NewTree("Sample.kt", 0)
	root := t.Add(stub.NoNodeID, stub.Data{Kind: stub.KindFile, FqName: stub.Some("pkg")})
	id := t.Add(root, data)
	return t, t.Node(id)
}

func propertyData(name, fq string, flags stub.Flags) stub.Data {
	d := stub.Data{Kind: stub.KindProperty, Flags: flags}
	if name != "" {
		d.Name = stub.Some(name)
	}
	if fq != "" {
		d.FqName = stub.Some(fq)
	}
	return d
}

func roundTrip(t *testing.T, et ElementType, n *stub.Node) stub.Data {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, et.Serialize(n, stubio.NewWriter(&buf)))
	got, err := et.Deserialize(stubio.NewReader(&buf))
	require.NoError(t, err)
	return got
}

func TestPropertyRoundTrip(t *testing.T) {
	pt := NewPropertyType(index.DefaultPolicy())
	all := stub.FlagVar | stub.FlagTopLevel | stub.FlagHasInitializer | stub.FlagExtension | stub.FlagHasReturnType

	cases := []struct {
		name string
		data stub.Data
	}{
		{"bare", propertyData("x", "", 0)},
		{"anonymous", propertyData("", "", stub.FlagTopLevel)},
		{"all flags", propertyData("x", "pkg.x", all)},
		{"int constant", func() stub.Data {
			d := propertyData("LIMIT", "pkg.LIMIT", stub.FlagTopLevel|stub.FlagHasInitializer)
			d.Constant = stub.IntConst(10)
			return d
		}()},
		{"enum constant", func() stub.Data {
			d := propertyData("MODE", "pkg.MODE", stub.FlagTopLevel)
			d.Constant = stub.EnumConst("pkg/Mode", "ON")
			return d
		}()},
		{"null constant", func() stub.Data {
			d := propertyData("NONE", "", 0)
			d.Constant = stub.NullConst()
			return d
		}()},
		{"facade origin", func() stub.Data {
			d := propertyData("x", "pkg.x", stub.FlagTopLevel)
			d.Origin = stub.FacadeOrigin("pkg/SampleKt")
			return d
		}()},
		{"multifile origin", func() stub.Data {
			d := propertyData("x", "pkg.x", stub.FlagTopLevel)
			d.Origin = stub.MultiFileFacadeOrigin("pkg/Sample__1Kt", "pkg/SampleKt")
			return d
		}()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, n := treeWith(tc.data)
			assert.Equal(t, tc.data, roundTrip(t, pt, n))
		})
	}
}

func TestPropertyRoundTripAllFlagCombinations(t *testing.T) {
	pt := NewPropertyType(index.DefaultPolicy())
	bits := []stub.Flags{stub.FlagVar, stub.FlagTopLevel, stub.FlagHasInitializer, stub.FlagExtension, stub.FlagHasReturnType}
	for mask := range 1 << len(bits) {
		var flags stub.Flags
		for i, b := range bits {
			if mask&(1<<i) != 0 {
				flags |= b
			}
		}
		data := propertyData("p", "pkg.p", flags)
		_, n := treeWith(data)
		assert.Equal(t, data, roundTrip(t, pt, n), "flags %v", flags.Strings())
	}
}

func TestPropertyCountScenario(t *testing.T) {
	file := syntax.NewFile("Count.kt", "", false)
	decl := file.Add(syntax.DeclProperty, syntax.Attrs{Name: "count", Var: true})

	reg := NewDefaultRegistry(index.DefaultPolicy())
	b := NewBuilder(reg, syntax.NoResolver)
	tree := stub.NewTree("Count.kt", 0)
	root := b.BuildStub(file, tree, stub.NoNodeID)
	id := b.BuildStub(decl, tree, root)

	var buf bytes.Buffer
	require.NoError(t, reg.SerializeStub(tree.Node(id), stubio.NewWriter(&buf)))

	decoded := stub.NewTree("Count.kt", 0)
	droot := decoded.Add(stub.NoNodeID, tree.Root().Data())
	did, err := reg.DeserializeStub(stubio.NewReader(&buf), decoded, droot)
	require.NoError(t, err)

	n := decoded.Node(did)
	assert.True(t, n.IsVar())
	assert.True(t, n.IsTopLevel())
	assert.False(t, n.HasInitializer())
	assert.False(t, n.IsExtension())
	assert.False(t, n.HasReturnTypeRef())
	_, ok := n.FqName()
	assert.False(t, ok)
	_, ok = n.Constant()
	assert.False(t, ok)
	_, ok = n.Origin()
	assert.False(t, ok)
	name, ok := n.Name()
	require.True(t, ok)
	assert.Equal(t, "count", name)
	assert.Equal(t, tree.Node(id).Data(), n.Data())
	assert.Equal(t, droot, decoded.Parent(did).ID(), "parent comes from the caller")
}

func TestPropertyRejectsLocal(t *testing.T) {
	file := syntax.NewFile("A.kt", "p", false)
	fn := file.Add(syntax.DeclFunction, syntax.Attrs{Name: "f", Body: true})
	local := fn.Add(syntax.DeclProperty, syntax.Attrs{Name: "tmp", Local: true})

	pt := NewPropertyType(index.DefaultPolicy())
	assert.False(t, pt.ShouldCreateStub(local))

	defer func() {
		r := recover()
		require.NotNil(t, r, "building a local property must panic")
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, ErrLocalDeclaration)
	}()
	pt.CreateStub(local, nil, BuildContext{})
}

func TestBuildStubRejectsLocalWithoutAddingNode(t *testing.T) {
	file := syntax.NewFile("A.kt", "p", false)
	local := file.Add(syntax.DeclProperty, syntax.Attrs{Name: "tmp", Local: true})

	reg := NewDefaultRegistry(index.DefaultPolicy())
	b := NewBuilder(reg, nil)
	tree := stub.NewTree("A.kt", 0)
	root := b.BuildStub(file, tree, stub.NoNodeID)

	assert.Panics(t, func() { b.BuildStub(local, tree, root) })
	assert.Equal(t, 1, tree.Len())
}

func TestPropertyCreateStub(t *testing.T) {
	file := syntax.NewFile("A.kt", "com.example", false)
	class := file.Add(syntax.DeclClass, syntax.Attrs{Name: "Box"})
	member := class.Add(syntax.DeclProperty, syntax.Attrs{
		Name:         "size",
		Receiver:     true,
		DeclaredType: true,
		Literal:      syntax.Literal{Kind: syntax.LitInt, Text: "1"},
		Origin:       stub.FacadeOrigin("com/example/AKt"),
	})

	pt := NewPropertyType(index.DefaultPolicy())
	data := pt.CreateStub(member, nil, BuildContext{Resolver: syntax.PackageResolver{}})

	assert.Equal(t, stub.Some("size"), data.Name)
	assert.Equal(t, stub.Some("com.example.Box.size"), data.FqName)
	assert.Equal(t, stub.FlagHasInitializer|stub.FlagExtension|stub.FlagHasReturnType, data.Flags)
	assert.False(t, data.Constant.IsSet(), "constants are attached by enrichment")
	assert.Equal(t, stub.FacadeOrigin("com/example/AKt"), data.Origin)
}

func TestAbsentFieldsCostOneByteEach(t *testing.T) {
	pt := NewPropertyType(index.DefaultPolicy())
	size := func(d stub.Data) int64 {
		_, n := treeWith(d)
		w := stubio.NewWriter(&bytes.Buffer{})
		require.NoError(t, pt.Serialize(n, w))
		return w.Len()
	}

	const fq = "pkg.count"
	present := propertyData("count", fq, stub.FlagVar)
	present.Constant = stub.IntConst(5)
	absent := propertyData("count", "", stub.FlagVar)

	// fqName payload: length prefix + bytes; constant payload: one byte
	payload := int64(1+len(fq)) + 1
	assert.LessOrEqual(t, size(absent), size(present)-payload)

	// name, five flags, nil fqName, -1 constant, origin 0
	bare := propertyData("", "", 0)
	assert.Equal(t, int64(9), size(bare))
}

func TestStringInterningAcrossSiblings(t *testing.T) {
	reg := NewDefaultRegistry(index.DefaultPolicy())
	tree := stub.NewTree("Foo.kt", 0)
	root := tree.Add(stub.NoNodeID, stub.Data{Kind: stub.KindFile, FqName: stub.Some("pkg")})
	a := tree.Add(root, propertyData("bar", "pkg.Foo.bar", 0))
	b := tree.Add(root, propertyData("bar", "pkg.Foo.bar", stub.FlagVar))

	single := stubio.NewWriter(&bytes.Buffer{})
	require.NoError(t, reg.SerializeStub(tree.Node(a), single))

	both := stubio.NewWriter(&bytes.Buffer{})
	require.NoError(t, reg.SerializeStub(tree.Node(a), both))
	require.NoError(t, reg.SerializeStub(tree.Node(b), both))

	assert.Less(t, both.Len(), 2*single.Len())
}

func TestPropertyIndexTotality(t *testing.T) {
	pt := NewPropertyType(index.DefaultPolicy())

	_, anon := treeWith(propertyData("", "pkg.x", stub.FlagTopLevel))
	var none index.Collector
	pt.IndexStub(anon, &none)
	assert.Empty(t, none.Entries)

	_, named := treeWith(propertyData("x", "pkg.x", stub.FlagTopLevel))
	var c index.Collector
	pt.IndexStub(named, &c)
	assert.True(t, c.Refers("x", named.ID()))
	assert.Equal(t, []string{"x"}, c.Values(index.PropertyShort))
	assert.Equal(t, []string{"pkg.x"}, c.Values(index.PropertyTopLevelFq))
	assert.Equal(t, []string{"pkg"}, c.Values(index.PropertyTopLevelPkg))
}

func TestPropertyIndexPolicy(t *testing.T) {
	_, n := treeWith(propertyData("x", "pkg.x", stub.FlagTopLevel))

	var c index.Collector
	NewPropertyType(index.Policy{}).IndexStub(n, &c)
	assert.Equal(t, []string{"x"}, c.Values(index.PropertyShort))
	assert.Len(t, c.Entries, 1)

	_, member := treeWith(propertyData("y", "pkg.C.y", 0))
	var m index.Collector
	NewPropertyType(index.DefaultPolicy()).IndexStub(member, &m)
	assert.Len(t, m.Entries, 1, "members only go to the short-name index")
}

func TestPropertyRefusesUnencodableData(t *testing.T) {
	pt := NewPropertyType(index.DefaultPolicy())
	_, n := treeWith(propertyData("x", "", stub.FlagVar|stub.FlagCompanion))

	err := pt.Serialize(n, stubio.NewWriter(&bytes.Buffer{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnencodable)
}

func TestPropertyTruncatedInput(t *testing.T) {
	pt := NewPropertyType(index.DefaultPolicy())
	_, n := treeWith(propertyData("count", "pkg.count", stub.FlagVar))

	var buf bytes.Buffer
	require.NoError(t, pt.Serialize(n, stubio.NewWriter(&buf)))

	for cut := 0; cut < buf.Len(); cut++ {
		_, err := pt.Deserialize(stubio.NewReader(bytes.NewReader(buf.Bytes()[:cut])))
		require.Error(t, err, "cut at %d", cut)
		var de *stubio.DecodeError
		require.True(t, errors.As(err, &de), "cut at %d", cut)
		assert.LessOrEqual(t, de.Offset, int64(cut))
	}
}
