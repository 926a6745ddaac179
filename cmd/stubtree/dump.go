package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"stubtree/internal/driver"
	"stubtree/internal/source"
	"stubtree/internal/stub"
	"stubtree/internal/testkit"
)

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump FILE",
		Short: "Print the stub tree of one file",
		Long: `Dump builds the stub tree of FILE from source and prints it. With --stored
the tree comes from the snapshot database instead.`,
		Args: cobra.ExactArgs(1),
		RunE: runDump,
	}
	cmd.Flags().String("format", "pretty", "output format (pretty|json)")
	cmd.Flags().Bool("check", false, "verify tree invariants and a byte-identical encode/decode round trip")
	cmd.Flags().Bool("stored", false, "read the tree from the snapshot instead of the source")
	return cmd
}

func runDump(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format = strings.ToLower(format)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	check, err := cmd.Flags().GetBool("check")
	if err != nil {
		return err
	}
	stored, err := cmd.Flags().GetBool("stored")
	if err != nil {
		return err
	}

	target := args[0]
	start := "."
	if !stored {
		start = target
	}
	s, err := openSession(cmd, start)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	rel, err := source.RelativePath(abs, s.cfg.Root)
	if err != nil {
		return err
	}

	var (
		tree *stub.Tree
		pos  map[stub.NodeID]source.LineCol
	)
	if stored {
		tree, err = s.storedTree(rel)
	} else {
		tree, pos, err = s.freshTree(abs)
	}
	if err != nil {
		return err
	}

	if check {
		if err := s.checkTree(tree); err != nil {
			return err
		}
	}

	if format == "json" {
		enc := json.NewEncoder(s.out())
		enc.SetIndent("", "  ")
		if err := enc.Encode(dumpJSON(tree, pos)); err != nil {
			return err
		}
	} else {
		renderTree(s.out(), tree, pos)
	}
	if check && !s.quiet && format == "pretty" {
		_, _ = fmt.Fprintln(s.errOut(), "check: ok")
	}
	s.printTimings()
	return nil
}

func (s *session) freshTree(abs string) (*stub.Tree, map[stub.NodeID]source.LineCol, error) {
	var res *driver.Result
	err := s.phase("stub", func(ctx context.Context) error {
		var err error
		res, err = driver.StubFiles(ctx, []string{abs}, s.options())
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if len(res.Errors) > 0 {
		return nil, nil, res.Errors[0]
	}
	f := res.Files[0]
	if f.Partial && !s.quiet {
		_, _ = fmt.Fprintf(s.errOut(), "%s %s: syntax errors, stubs may be incomplete\n", warnColor.Sprint("warning:"), pathColor.Sprint(f.Path))
	}
	return f.Tree, f.Positions, nil
}

func (s *session) storedTree(rel string) (*stub.Tree, error) {
	st, err := s.openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()
	rec, ok, err := st.Get(rel)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s is not in the snapshot %s", rel, st.Path())
	}
	return s.reg.DecodeTree(rel, rec.Blob)
}

var errRoundTrip = errors.New("round trip mismatch")

func (s *session) checkTree(tree *stub.Tree) error {
	if err := testkit.CheckTreeInvariants(tree); err != nil {
		return err
	}
	blob, err := s.reg.EncodeTree(tree)
	if err != nil {
		return err
	}
	decoded, err := s.reg.DecodeTree(tree.Path(), blob)
	if err != nil {
		return err
	}
	if !tree.Equal(decoded) {
		return fmt.Errorf("%s: %w: decoded tree differs", tree.Path(), errRoundTrip)
	}
	again, err := s.reg.EncodeTree(decoded)
	if err != nil {
		return err
	}
	if !bytes.Equal(blob, again) {
		return fmt.Errorf("%s: %w: re-encoded bytes differ", tree.Path(), errRoundTrip)
	}
	return nil
}

func renderTree(w io.Writer, tree *stub.Tree, pos map[stub.NodeID]source.LineCol) {
	_, _ = fmt.Fprintf(w, "%s (%d stubs)\n", pathColor.Sprint(tree.Path()), tree.Len())
	tree.Walk(func(n *stub.Node, depth int) bool {
		var b strings.Builder
		b.WriteString(strings.Repeat("  ", depth+1))
		b.WriteString(kindColor(n.Kind()).Sprint(n.Kind().String()))
		if name, ok := n.Name(); ok {
			b.WriteString(" ")
			b.WriteString(name)
		}
		if fq, ok := n.FqName(); ok {
			b.WriteString(" ")
			b.WriteString(dimColor.Sprint(fq))
		}
		if flags := n.Flags().Strings(); len(flags) > 0 {
			b.WriteString(" ")
			b.WriteString(flagColor.Sprint("[" + strings.Join(flags, " ") + "]"))
		}
		if v, ok := n.Constant(); ok {
			b.WriteString(" = ")
			b.WriteString(constColor.Sprint(v.String()))
		}
		if o, ok := n.Origin(); ok {
			b.WriteString(" ")
			b.WriteString(dimColor.Sprint("origin=" + o.String()))
		}
		if lc, ok := pos[n.ID()]; ok && lc.Line > 0 {
			b.WriteString(dimColor.Sprintf(" @%d:%d", lc.Line, lc.Col))
		}
		_, _ = fmt.Fprintln(w, b.String())
		return true
	})
}

type dumpNode struct {
	Kind     string     `json:"kind"`
	Name     string     `json:"name,omitempty"`
	FqName   string     `json:"fqName,omitempty"`
	Flags    []string   `json:"flags,omitempty"`
	Constant string     `json:"constant,omitempty"`
	Origin   string     `json:"origin,omitempty"`
	Line     uint32     `json:"line,omitempty"`
	Col      uint32     `json:"col,omitempty"`
	Children []dumpNode `json:"children,omitempty"`
}

type dumpFile struct {
	Path  string    `json:"path"`
	Stubs int       `json:"stubs"`
	Root  *dumpNode `json:"root,omitempty"`
}

func dumpJSON(tree *stub.Tree, pos map[stub.NodeID]source.LineCol) dumpFile {
	out := dumpFile{Path: tree.Path(), Stubs: tree.Len()}
	if root := tree.Root(); root != nil {
		node := toDumpNode(tree, root, pos)
		out.Root = &node
	}
	return out
}

func toDumpNode(tree *stub.Tree, n *stub.Node, pos map[stub.NodeID]source.LineCol) dumpNode {
	d := dumpNode{Kind: n.Kind().String(), Flags: n.Flags().Strings()}
	if lc, ok := pos[n.ID()]; ok {
		d.Line, d.Col = lc.Line, lc.Col
	}
	d.Name, _ = n.Name()
	d.FqName, _ = n.FqName()
	if v, ok := n.Constant(); ok {
		d.Constant = v.String()
	}
	if o, ok := n.Origin(); ok {
		d.Origin = o.String()
	}
	for _, id := range n.Children() {
		d.Children = append(d.Children, toDumpNode(tree, tree.Node(id), pos))
	}
	return d
}
