package stubio

import (
	"stubtree/internal/stub"
)

// absentConst is written in place of the discriminator when no constant is
// attached; it encodes as a single byte.
const absentConst = -1

// WriteConst writes an optional compile-time constant: the kind discriminator
// (or -1) followed by the kind's payload.
func (w *Writer) WriteConst(c stub.ConstValue) error {
	if !c.IsSet() {
		return w.WriteInt(absentConst)
	}
	if err := w.WriteInt(int64(c.Kind)); err != nil {
		return err
	}
	switch c.Kind {
	case stub.ConstNull:
		return nil
	case stub.ConstBool:
		return w.WriteBool(c.Bool)
	case stub.ConstInt:
		return w.WriteInt(c.Int)
	case stub.ConstFloat:
		return w.WriteFloat(c.Float)
	case stub.ConstString:
		return w.WriteString(c.Text)
	case stub.ConstEnumEntry:
		if err := w.WriteName(stub.Some(c.Class)); err != nil {
			return err
		}
		return w.WriteName(stub.Some(c.Text))
	}
	return nil
}

// ReadConst reads a value written by WriteConst.
func (r *Reader) ReadConst(field string) (stub.ConstValue, error) {
	at := r.Offset()
	tag, err := r.ReadInt(field)
	if err != nil {
		return stub.ConstValue{}, err
	}
	if tag == absentConst {
		return stub.ConstValue{}, nil
	}
	if tag <= int64(stub.ConstNone) || tag > int64(stub.ConstEnumEntry) {
		return stub.ConstValue{}, r.Failf(field, at, "unknown constant kind %d", tag)
	}
	switch stub.ConstKind(tag) {
	case stub.ConstNull:
		return stub.NullConst(), nil
	case stub.ConstBool:
		v, err := r.ReadBool(field)
		if err != nil {
			return stub.ConstValue{}, err
		}
		return stub.BoolConst(v), nil
	case stub.ConstInt:
		v, err := r.ReadInt(field)
		if err != nil {
			return stub.ConstValue{}, err
		}
		return stub.IntConst(v), nil
	case stub.ConstFloat:
		v, err := r.ReadFloat(field)
		if err != nil {
			return stub.ConstValue{}, err
		}
		return stub.FloatConst(v), nil
	case stub.ConstString:
		v, err := r.ReadString(field)
		if err != nil {
			return stub.ConstValue{}, err
		}
		return stub.StringConst(v), nil
	}
	class, err := r.ReadName(field)
	if err != nil {
		return stub.ConstValue{}, err
	}
	entry, err := r.ReadName(field)
	if err != nil {
		return stub.ConstValue{}, err
	}
	if !class.Valid || !entry.Valid {
		return stub.ConstValue{}, r.Failf(field, at, "enum constant without class or entry")
	}
	return stub.EnumConst(class.Value, entry.Value), nil
}

const (
	originTagNone uint64 = iota
	originTagFacade
	originTagMultiFile
)

// WriteOrigin writes optional compiled-declaration provenance.
func (w *Writer) WriteOrigin(o stub.Origin) error {
	switch o.Kind {
	case stub.OriginFacade:
		if err := w.WriteUint(originTagFacade); err != nil {
			return err
		}
		return w.WriteName(stub.Some(o.ClassName))
	case stub.OriginMultiFileFacade:
		if err := w.WriteUint(originTagMultiFile); err != nil {
			return err
		}
		if err := w.WriteName(stub.Some(o.ClassName)); err != nil {
			return err
		}
		return w.WriteName(stub.Some(o.FacadeClassName))
	default:
		return w.WriteUint(originTagNone)
	}
}

// ReadOrigin reads a value written by WriteOrigin.
func (r *Reader) ReadOrigin(field string) (stub.Origin, error) {
	at := r.Offset()
	tag, err := r.ReadUint(field)
	if err != nil {
		return stub.Origin{}, err
	}
	switch tag {
	case originTagNone:
		return stub.Origin{}, nil
	case originTagFacade:
		class, err := r.ReadName(field)
		if err != nil {
			return stub.Origin{}, err
		}
		if !class.Valid {
			return stub.Origin{}, r.Failf(field, at, "facade origin without class")
		}
		return stub.FacadeOrigin(class.Value), nil
	case originTagMultiFile:
		class, err := r.ReadName(field)
		if err != nil {
			return stub.Origin{}, err
		}
		facade, err := r.ReadName(field)
		if err != nil {
			return stub.Origin{}, err
		}
		if !class.Valid || !facade.Valid {
			return stub.Origin{}, r.Failf(field, at, "multifile origin without class")
		}
		return stub.MultiFileFacadeOrigin(class.Value, facade.Value), nil
	}
	return stub.Origin{}, r.Failf(field, at, "unknown origin tag %d", tag)
}
