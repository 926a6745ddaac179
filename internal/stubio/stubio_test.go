package stubio

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stubtree/internal/stub"
)

func TestPrimitivesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteBool(true))
	require.NoError(t, w.WriteUint(300))
	require.NoError(t, w.WriteInt(-70000))
	require.NoError(t, w.WriteFloat(math.Pi))
	require.NoError(t, w.WriteString("héllo"))
	assert.Equal(t, int64(buf.Len()), w.Len())

	r := NewReader(bytes.NewReader(buf.Bytes()))
	b, err := r.ReadBool("b")
	require.NoError(t, err)
	assert.True(t, b)
	u, err := r.ReadUint("u")
	require.NoError(t, err)
	assert.Equal(t, uint64(300), u)
	i, err := r.ReadInt("i")
	require.NoError(t, err)
	assert.Equal(t, int64(-70000), i)
	f, err := r.ReadFloat("f")
	require.NoError(t, err)
	assert.Equal(t, math.Pi, f)
	s, err := r.ReadString("s")
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)
	assert.Equal(t, w.Len(), r.Offset())
}

func TestAbsentFieldsAreOneByte(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteName(stub.NullString{}))
	assert.Equal(t, int64(1), w.Len())

	require.NoError(t, w.WriteConst(stub.ConstValue{}))
	assert.Equal(t, int64(2), w.Len())

	require.NoError(t, w.WriteOrigin(stub.Origin{}))
	assert.Equal(t, int64(3), w.Len())
}

func TestNamesAreInterned(t *testing.T) {
	single := func(names ...string) int64 {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		for _, n := range names {
			require.NoError(t, w.WriteName(stub.Some(n)))
		}
		return w.Len()
	}

	one := single("pkg.Foo.bar")
	two := single("pkg.Foo.bar", "pkg.Foo.bar")
	assert.Less(t, two, 2*one)
	assert.Equal(t, one+1, two, "a repeated name is a one-byte reference")
}

func TestNameTableRoundTrip(t *testing.T) {
	names := []stub.NullString{
		stub.Some("count"),
		stub.NullString{},
		stub.Some("pkg.count"),
		stub.Some("count"),
		stub.Some(""),
		stub.Some("pkg.count"),
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, n := range names {
		require.NoError(t, w.WriteName(n))
	}
	assert.Equal(t, 2, w.NameCount())

	r := NewReader(&buf)
	for i, want := range names {
		got, err := r.ReadName("name")
		require.NoError(t, err, "name %d", i)
		assert.Equal(t, want, got, "name %d", i)
	}
}

func TestConstRoundTrip(t *testing.T) {
	values := []stub.ConstValue{
		{},
		stub.NullConst(),
		stub.BoolConst(false),
		stub.IntConst(math.MinInt64),
		stub.IntConst(42),
		stub.FloatConst(-0.5),
		stub.FloatConst(math.NaN()),
		stub.FloatConst(math.Inf(-1)),
		stub.StringConst(""),
		stub.StringConst("text"),
		stub.EnumConst("pkg/Color", "RED"),
		stub.EnumConst("pkg/Color", "GREEN"),
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, v := range values {
		require.NoError(t, w.WriteConst(v))
	}

	r := NewReader(&buf)
	for _, want := range values {
		got, err := r.ReadConst("constant")
		require.NoError(t, err)
		assert.True(t, want.Equal(got), "%s != %s", want, got)
	}
}

func TestOriginRoundTrip(t *testing.T) {
	values := []stub.Origin{
		{},
		stub.FacadeOrigin("pkg/UtilsKt"),
		stub.MultiFileFacadeOrigin("pkg/Utils__PartKt", "pkg/UtilsKt"),
		stub.FacadeOrigin("pkg/UtilsKt"),
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, v := range values {
		require.NoError(t, w.WriteOrigin(v))
	}

	r := NewReader(&buf)
	for _, want := range values {
		got, err := r.ReadOrigin("origin")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestTruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteBool(true))
	require.NoError(t, w.WriteString("a fairly long name"))
	data := buf.Bytes()[:buf.Len()-4]

	r := NewReader(bytes.NewReader(data))
	_, err := r.ReadBool("isVar")
	require.NoError(t, err)
	_, err = r.ReadString("name")
	require.Error(t, err)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "name", de.Field)
	assert.Equal(t, int64(1), de.Offset)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.True(t, IsDecodeError(err))
}

func TestEmptyStreamIsTruncated(t *testing.T) {
	_, err := NewReader(bytes.NewReader(nil)).ReadBool("isVar")
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestMalformedInputs(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		read func(r *Reader) error
	}{
		{
			name: "string where bool expected",
			data: []byte{0xa1, 'x'},
			read: func(r *Reader) error { _, err := r.ReadBool("isVar"); return err },
		},
		{
			name: "bool where integer expected",
			data: []byte{0xc3},
			read: func(r *Reader) error { _, err := r.ReadInt("n"); return err },
		},
		{
			name: "dangling name reference",
			data: []byte{0x05},
			read: func(r *Reader) error { _, err := r.ReadName("name"); return err },
		},
		{
			name: "duplicate name literal",
			data: []byte{0x00, 0xa1, 'a', 0x00, 0xa1, 'a'},
			read: func(r *Reader) error {
				if _, err := r.ReadName("name"); err != nil {
					return err
				}
				_, err := r.ReadName("fqName")
				return err
			},
		},
		{
			name: "unknown constant kind",
			data: []byte{0x7f},
			read: func(r *Reader) error { _, err := r.ReadConst("constant"); return err },
		},
		{
			name: "unknown origin tag",
			data: []byte{0x09},
			read: func(r *Reader) error { _, err := r.ReadOrigin("origin"); return err },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.read(NewReader(bytes.NewReader(tc.data)))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.True(t, IsDecodeError(err))
		})
	}
}

func TestReaderAtReportsAbsoluteOffsets(t *testing.T) {
	r := NewReaderAt(bytes.NewReader([]byte{0xc3}), 100)
	_, err := r.ReadBool("isVar")
	require.NoError(t, err)
	_, err = r.ReadBool("isTopLevel")

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, int64(101), de.Offset)
}
