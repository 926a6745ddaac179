package elements

import (
	"errors"
	"fmt"

	"stubtree/internal/stub"
	"stubtree/internal/stubio"
)

// ErrUnencodable means a node carries data its kind's layout cannot write;
// encoding it would lose information.
var ErrUnencodable = errors.New("field not encodable for kind")

type slotKind uint8

const (
	slotName slotKind = iota
	slotFqName
	slotFlag
	slotConst
	slotOrigin
)

type slot struct {
	kind  slotKind
	flag  stub.Flags
	field string
}

func nameSlot() slot                           { return slot{kind: slotName, field: "name"} }
func fqNameSlot() slot                         { return slot{kind: slotFqName, field: "fqName"} }
func constSlot() slot                          { return slot{kind: slotConst, field: "constant"} }
func originSlot() slot                         { return slot{kind: slotOrigin, field: "origin"} }
func flagSlot(f stub.Flags, field string) slot { return slot{kind: slotFlag, flag: f, field: field} }

// layout is the positional wire format of one kind. Nothing is tagged; the
// order of slots is the order on the wire.
type layout struct {
	kind  stub.Kind
	slots []slot
	mask  stub.Flags
	has   [slotOrigin + 1]bool
}

func newLayout(kind stub.Kind, slots ...slot) layout {
	l := layout{kind: kind, slots: slots}
	for _, s := range slots {
		l.has[s.kind] = true
		if s.kind == slotFlag {
			l.mask |= s.flag
		}
	}
	return l
}

func (l *layout) check(d stub.Data) error {
	switch {
	case d.Kind != l.kind:
		return fmt.Errorf("%w: %s node encoded as %s", ErrUnencodable, d.Kind, l.kind)
	case d.Flags&^l.mask != 0:
		return fmt.Errorf("%w: %s flags %v", ErrUnencodable, l.kind, (d.Flags &^ l.mask).Strings())
	case d.Name.Valid && !l.has[slotName]:
		return fmt.Errorf("%w: %s name", ErrUnencodable, l.kind)
	case d.FqName.Valid && !l.has[slotFqName]:
		return fmt.Errorf("%w: %s fqName", ErrUnencodable, l.kind)
	case d.Constant.IsSet() && !l.has[slotConst]:
		return fmt.Errorf("%w: %s constant", ErrUnencodable, l.kind)
	case d.Origin.IsSet() && !l.has[slotOrigin]:
		return fmt.Errorf("%w: %s origin", ErrUnencodable, l.kind)
	}
	return nil
}

func (l *layout) write(d stub.Data, w *stubio.Writer) error {
	if err := l.check(d); err != nil {
		return err
	}
	for _, s := range l.slots {
		var err error
		switch s.kind {
		case slotName:
			err = w.WriteName(d.Name)
		case slotFqName:
			err = w.WriteName(d.FqName)
		case slotFlag:
			err = w.WriteBool(d.Flags.Has(s.flag))
		case slotConst:
			err = w.WriteConst(d.Constant)
		case slotOrigin:
			err = w.WriteOrigin(d.Origin)
		}
		if err != nil {
			return fmt.Errorf("write %s.%s: %w", l.kind, s.field, err)
		}
	}
	return nil
}

func (l *layout) read(r *stubio.Reader) (stub.Data, error) {
	d := stub.Data{Kind: l.kind}
	for _, s := range l.slots {
		var err error
		switch s.kind {
		case slotName:
			d.Name, err = r.ReadName(s.field)
		case slotFqName:
			d.FqName, err = r.ReadName(s.field)
		case slotFlag:
			var on bool
			on, err = r.ReadBool(s.field)
			d.Flags = d.Flags.With(s.flag, on)
		case slotConst:
			d.Constant, err = r.ReadConst(s.field)
		case slotOrigin:
			d.Origin, err = r.ReadOrigin(s.field)
		}
		if err != nil {
			return stub.Data{}, err
		}
	}
	return d, nil
}

// codec implements the serialization half of ElementType from a layout.
type codec struct {
	layout layout
}

func (c codec) Kind() stub.Kind { return c.layout.kind }

func (c codec) Serialize(n *stub.Node, w *stubio.Writer) error {
	return c.layout.write(n.Data(), w)
}

func (c codec) Deserialize(r *stubio.Reader) (stub.Data, error) {
	return c.layout.read(r)
}
