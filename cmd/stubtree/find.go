package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stubtree/internal/index"
	"stubtree/internal/stub"
)

func newFindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find NAME",
		Short: "Look up a declaration in the stub indexes",
		Long: `Find loads the snapshot, rebuilds the indexes from the stored stubs and
looks NAME up. Without --index every short-name index is searched.`,
		Args: cobra.ExactArgs(1),
		RunE: runFind,
	}
	cmd.Flags().StringSlice("index", nil, "indexes to query (e.g. class.short,property.toplevel.fqname)")
	cmd.Flags().String("format", "pretty", "output format (pretty|json)")
	return cmd
}

type findHit struct {
	Index  string `json:"index"`
	File   string `json:"file"`
	Kind   string `json:"kind"`
	Name   string `json:"name,omitempty"`
	FqName string `json:"fqName,omitempty"`
}

func runFind(cmd *cobra.Command, args []string) error {
	names, err := cmd.Flags().GetStringSlice("index")
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format = strings.ToLower(format)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	ids := index.Short
	if len(names) > 0 {
		ids = make([]index.ID, 0, len(names))
		for _, name := range names {
			id := index.ID(strings.TrimSpace(name))
			if !index.Known(id) {
				return fmt.Errorf("unknown index %q", name)
			}
			ids = append(ids, id)
		}
	}

	s, err := openSession(cmd, ".")
	if err != nil {
		return err
	}
	res, store, err := s.loadIndex()
	if err != nil {
		return err
	}

	hits := []findHit{}
	for _, id := range ids {
		for _, ref := range store.Lookup(index.Key{Index: id, Value: args[0]}) {
			hit := findHit{Index: id.String(), File: ref.File}
			if f, ok := res.File(ref.File); ok {
				if n := f.Tree.Node(ref.Node); n != nil {
					hit.Kind = n.Kind().String()
					hit.Name, _ = n.Name()
					hit.FqName, _ = n.FqName()
				}
			}
			hits = append(hits, hit)
		}
	}

	if format == "json" {
		enc := json.NewEncoder(s.out())
		enc.SetIndent("", "  ")
		if err := enc.Encode(hits); err != nil {
			return err
		}
	} else {
		for _, h := range hits {
			label := h.FqName
			if label == "" {
				label = h.Name
			}
			_, _ = fmt.Fprintf(s.out(), "%-28s %s %s %s\n",
				dimColor.Sprint(h.Index), pathColor.Sprint(h.File), kindColor(stub.Kind(h.Kind)).Sprint(h.Kind), label)
		}
		if len(hits) == 0 && !s.quiet {
			_, _ = fmt.Fprintf(s.errOut(), "no matches for %q\n", args[0])
		}
	}
	s.printTimings()
	return nil
}
