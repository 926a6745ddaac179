package stubio

import (
	"bufio"
	"fmt"
	"io"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"stubtree/internal/source"
	"stubtree/internal/stub"
)

type byteScanner interface {
	io.Reader
	io.ByteScanner
}

// countingReader tracks the offset of the next unread byte. The msgpack
// decoder uses it directly (no extra buffering) because it is a ByteScanner.
type countingReader struct {
	r byteScanner
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}

func (c *countingReader) UnreadByte() error {
	err := c.r.UnreadByte()
	if err == nil {
		c.n--
	}
	return err
}

// Reader is a sequential stub input stream. It owns the underlying reader:
// bytes past the last decoded field may have been buffered.
type Reader struct {
	in    *countingReader
	dec   *msgpack.Decoder
	names *source.Interner
}

// NewReader wraps r; offsets in errors start at 0.
func NewReader(r io.Reader) *Reader {
	return NewReaderAt(r, 0)
}

// NewReaderAt wraps r whose first byte sits at base within a larger blob, so
// reported offsets are absolute.
func NewReaderAt(r io.Reader, base int64) *Reader {
	bs, ok := r.(byteScanner)
	if !ok {
		bs = bufio.NewReader(r)
	}
	in := &countingReader{r: bs, n: base}
	return &Reader{
		in:    in,
		dec:   msgpack.NewDecoder(in),
		names: source.NewInterner(),
	}
}

// Offset returns the position of the next unread byte.
func (r *Reader) Offset() int64 { return r.in.n }

func (r *Reader) fail(field string, at int64, err error) error {
	return &DecodeError{Offset: at, Field: field, Err: classify(err)}
}

// Failf builds a DecodeError for a semantic check done by the caller.
func (r *Reader) Failf(field string, at int64, format string, args ...any) error {
	return &DecodeError{Offset: at, Field: field, Err: fmt.Errorf("%w: "+format, append([]any{ErrMalformed}, args...)...)}
}

func (r *Reader) ReadBool(field string) (bool, error) {
	at := r.in.n
	v, err := r.dec.DecodeBool()
	if err != nil {
		return false, r.fail(field, at, err)
	}
	return v, nil
}

func (r *Reader) ReadUint(field string) (uint64, error) {
	at := r.in.n
	if err := r.expectInt(field, at); err != nil {
		return 0, err
	}
	v, err := r.dec.DecodeUint64()
	if err != nil {
		return 0, r.fail(field, at, err)
	}
	return v, nil
}

func (r *Reader) ReadInt(field string) (int64, error) {
	at := r.in.n
	if err := r.expectInt(field, at); err != nil {
		return 0, err
	}
	v, err := r.dec.DecodeInt64()
	if err != nil {
		return 0, r.fail(field, at, err)
	}
	return v, nil
}

func (r *Reader) ReadFloat(field string) (float64, error) {
	at := r.in.n
	v, err := r.dec.DecodeFloat64()
	if err != nil {
		return 0, r.fail(field, at, err)
	}
	return v, nil
}

func (r *Reader) ReadString(field string) (string, error) {
	at := r.in.n
	code, err := r.dec.PeekCode()
	if err != nil {
		return "", r.fail(field, at, err)
	}
	if !msgpcode.IsString(code) && !msgpcode.IsBin(code) {
		return "", r.Failf(field, at, "unexpected code 0x%02x for string", code)
	}
	v, err := r.dec.DecodeString()
	if err != nil {
		return "", r.fail(field, at, err)
	}
	return v, nil
}

// ReadCount reads a non-negative element count.
func (r *Reader) ReadCount(field string) (int, error) {
	at := r.in.n
	v, err := r.ReadUint(field)
	if err != nil {
		return 0, err
	}
	n, err := safecast.Conv[int](v)
	if err != nil {
		return 0, r.fail(field, at, err)
	}
	return n, nil
}

// ReadName reads an optional name through the stream string table.
func (r *Reader) ReadName(field string) (stub.NullString, error) {
	at := r.in.n
	code, err := r.dec.PeekCode()
	if err != nil {
		return stub.NullString{}, r.fail(field, at, err)
	}
	if code == msgpcode.Nil {
		if err := r.dec.DecodeNil(); err != nil {
			return stub.NullString{}, r.fail(field, at, err)
		}
		return stub.NullString{}, nil
	}
	marker, err := r.ReadUint(field)
	if err != nil {
		return stub.NullString{}, err
	}
	if marker == 0 {
		s, err := r.ReadString(field)
		if err != nil {
			return stub.NullString{}, err
		}
		if _, dup := r.names.Find(s); dup {
			return stub.NullString{}, r.Failf(field, at, "name %q written twice", s)
		}
		r.names.Intern(s)
		return stub.Some(s), nil
	}
	id, err := safecast.Conv[uint32](marker - 1)
	if err != nil {
		return stub.NullString{}, r.fail(field, at, err)
	}
	s, ok := r.names.Lookup(source.StringID(id))
	if !ok {
		return stub.NullString{}, r.Failf(field, at, "dangling name reference %d", marker)
	}
	return stub.Some(s), nil
}

func (r *Reader) expectInt(field string, at int64) error {
	code, err := r.dec.PeekCode()
	if err != nil {
		return r.fail(field, at, err)
	}
	if !isIntCode(code) {
		return r.Failf(field, at, "unexpected code 0x%02x for integer", code)
	}
	return nil
}

func isIntCode(c byte) bool {
	if msgpcode.IsFixedNum(c) {
		return true
	}
	switch c {
	case msgpcode.Uint8, msgpcode.Uint16, msgpcode.Uint32, msgpcode.Uint64,
		msgpcode.Int8, msgpcode.Int16, msgpcode.Int32, msgpcode.Int64:
		return true
	}
	return false
}
