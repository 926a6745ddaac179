// Package stubio implements the positional byte format stubs are stored in.
//
// Primitives are msgpack-encoded so every value is self-delimiting: booleans take
// one byte, small integers one byte, strings a length prefix and the bytes.
// Field order is fixed by each element type; nothing on the wire is tagged.
//
// Names (symbol names, qualified names, class ids) go through a per-stream
// string table. The first occurrence is written inline and gets the next table
// id, later occurrences are written as a reference:
//
//	nil       absent name
//	0 <str>   new literal, appended to the table
//	k > 0     reference to table entry k-1
//
// Each stream owns its table, so streams for different files never share
// mutable state and can be produced in parallel.
package stubio

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"stubtree/internal/source"
	"stubtree/internal/stub"
)

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func (c *countingWriter) WriteByte(b byte) error {
	n, err := c.w.Write([]byte{b})
	c.n += int64(n)
	return err
}

// Writer is an append-only stub output stream.
type Writer struct {
	out   *countingWriter
	enc   *msgpack.Encoder
	names *source.Interner
}

// NewWriter wraps w. Writes are not buffered by the Writer itself.
func NewWriter(w io.Writer) *Writer {
	out := &countingWriter{w: w}
	return &Writer{
		out:   out,
		enc:   msgpack.NewEncoder(out),
		names: source.NewInterner(),
	}
}

// Len reports the number of bytes written so far.
func (w *Writer) Len() int64 { return w.out.n }

// NameCount reports how many distinct names the stream table holds.
func (w *Writer) NameCount() int { return w.names.Len() - 1 }

func (w *Writer) WriteBool(v bool) error     { return w.enc.EncodeBool(v) }
func (w *Writer) WriteUint(v uint64) error   { return w.enc.EncodeUint(v) }
func (w *Writer) WriteInt(v int64) error     { return w.enc.EncodeInt(v) }
func (w *Writer) WriteFloat(v float64) error { return w.enc.EncodeFloat64(v) }
func (w *Writer) WriteString(v string) error { return w.enc.EncodeString(v) }

// WriteName writes an optional name through the stream string table.
func (w *Writer) WriteName(s stub.NullString) error {
	if !s.Valid {
		return w.enc.EncodeNil()
	}
	if id, ok := w.names.Find(s.Value); ok {
		return w.enc.EncodeUint(uint64(id) + 1)
	}
	w.names.Intern(s.Value)
	if err := w.enc.EncodeUint(0); err != nil {
		return err
	}
	return w.enc.EncodeString(s.Value)
}
