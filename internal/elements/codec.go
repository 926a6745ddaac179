package elements

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"fortio.org/safecast"
	"github.com/zeebo/xxh3"

	"stubtree/internal/stub"
	"stubtree/internal/stubio"
)

// FormatVersion is bumped whenever any element layout changes.
const FormatVersion = 1

var treeMagic = [4]byte{'S', 'T', 'U', 'B'}

const (
	headerLen   = len(treeMagic) + 1
	checksumLen = 8
)

var (
	// ErrVersion means a blob was written by an incompatible format version.
	ErrVersion = errors.New("unsupported stub format version")
	// ErrChecksum means the blob does not match its trailer.
	ErrChecksum = errors.New("stub checksum mismatch")
	// ErrUnknownKind means a stream names a kind the registry does not know.
	ErrUnknownKind = errors.New("unknown stub kind")
)

// SerializeStub writes one node: its kind tag, then the fields in the kind's
// order. Children are not written.
func (r *Registry) SerializeStub(n *stub.Node, w *stubio.Writer) error {
	et, ok := r.Lookup(n.Kind())
	if !ok {
		return fmt.Errorf("serialize %s: %w", n.Kind(), ErrUnknownKind)
	}
	if err := w.WriteName(stub.Some(n.Kind().String())); err != nil {
		return err
	}
	return et.Serialize(n, w)
}

// DeserializeStub reads one node written by SerializeStub and links it under
// parent. The parent is supplied by the caller, never read from the stream.
func (r *Registry) DeserializeStub(rd *stubio.Reader, tree *stub.Tree, parent stub.NodeID) (stub.NodeID, error) {
	data, err := r.readStub(rd)
	if err != nil {
		return stub.NoNodeID, err
	}
	return tree.Add(parent, data), nil
}

func (r *Registry) readStub(rd *stubio.Reader) (stub.Data, error) {
	at := rd.Offset()
	tag, err := rd.ReadName("kind")
	if err != nil {
		return stub.Data{}, err
	}
	et, ok := r.Lookup(stub.Kind(tag.Value))
	if !tag.Valid || !ok {
		return stub.Data{}, &stubio.DecodeError{
			Offset: at,
			Field:  "kind",
			Err:    fmt.Errorf("%w: %w %q", stubio.ErrMalformed, ErrUnknownKind, tag.Value),
		}
	}
	return et.Deserialize(rd)
}

// EncodeTree serializes a whole tree. Layout:
//
//	"STUB" version(1 byte)
//	node count
//	node := stub, child count, children...
//	xxh3 of everything above (8 bytes, big endian)
//
// Encoding the same tree twice yields identical bytes.
func (r *Registry) EncodeTree(t *stub.Tree) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(treeMagic[:])
	buf.WriteByte(FormatVersion)

	w := stubio.NewWriter(&buf)
	if err := w.WriteUint(uint64(t.Len())); err != nil {
		return nil, err
	}
	if root := t.Root(); root != nil {
		if err := r.encodeNode(t, root, w); err != nil {
			return nil, fmt.Errorf("encode %s: %w", t.Path(), err)
		}
	}
	sum := xxh3.Hash(buf.Bytes())
	return binary.BigEndian.AppendUint64(buf.Bytes(), sum), nil
}

func (r *Registry) encodeNode(t *stub.Tree, n *stub.Node, w *stubio.Writer) error {
	if err := r.SerializeStub(n, w); err != nil {
		return err
	}
	children := n.Children()
	if err := w.WriteUint(uint64(len(children))); err != nil {
		return err
	}
	for _, id := range children {
		if err := r.encodeNode(t, t.Node(id), w); err != nil {
			return err
		}
	}
	return nil
}

// DecodeTree rebuilds a sealed tree from EncodeTree output. Any failure is a
// *stubio.DecodeError; callers treat it as a stale entry and rebuild from
// source.
func (r *Registry) DecodeTree(path string, blob []byte) (*stub.Tree, error) {
	if len(blob) < headerLen+checksumLen {
		return nil, &stubio.DecodeError{Offset: int64(len(blob)), Field: "header", Err: stubio.ErrTruncated}
	}
	if !bytes.Equal(blob[:len(treeMagic)], treeMagic[:]) {
		return nil, &stubio.DecodeError{Offset: 0, Field: "magic", Err: stubio.ErrMalformed}
	}
	if v := blob[len(treeMagic)]; v != FormatVersion {
		return nil, &stubio.DecodeError{
			Offset: int64(len(treeMagic)),
			Field:  "version",
			Err:    fmt.Errorf("%w: got %d, want %d", ErrVersion, v, FormatVersion),
		}
	}
	bodyEnd := len(blob) - checksumLen
	if xxh3.Hash(blob[:bodyEnd]) != binary.BigEndian.Uint64(blob[bodyEnd:]) {
		return nil, &stubio.DecodeError{
			Offset: int64(bodyEnd),
			Field:  "checksum",
			Err:    fmt.Errorf("%w: %w", stubio.ErrMalformed, ErrChecksum),
		}
	}

	rd := stubio.NewReaderAt(bytes.NewReader(blob[headerLen:bodyEnd]), int64(headerLen))
	at := rd.Offset()
	count, err := rd.ReadCount("nodeCount")
	if err != nil {
		return nil, err
	}
	// every node takes at least one byte
	if count > bodyEnd-headerLen {
		return nil, rd.Failf("nodeCount", at, "%d nodes in %d bytes", count, bodyEnd-headerLen)
	}
	capHint, err := safecast.Conv[uint32](count)
	if err != nil {
		return nil, rd.Failf("nodeCount", at, "%v", err)
	}

	tree := stub.NewTree(path, capHint)
	if count > 0 {
		if err := r.decodeNode(rd, tree, stub.NoNodeID); err != nil {
			return nil, err
		}
	}
	if tree.Len() != count {
		return nil, rd.Failf("nodeCount", at, "header says %d nodes, stream holds %d", count, tree.Len())
	}
	if rd.Offset() != int64(bodyEnd) {
		return nil, rd.Failf("trailer", rd.Offset(), "%d trailing bytes", int64(bodyEnd)-rd.Offset())
	}
	return tree.Seal(), nil
}

func (r *Registry) decodeNode(rd *stubio.Reader, tree *stub.Tree, parent stub.NodeID) error {
	id, err := r.DeserializeStub(rd, tree, parent)
	if err != nil {
		return err
	}
	n, err := rd.ReadCount("childCount")
	if err != nil {
		return err
	}
	for range n {
		if err := r.decodeNode(rd, tree, id); err != nil {
			return err
		}
	}
	return nil
}
