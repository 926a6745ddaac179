package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"stubtree/internal/stub"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the snapshot: stubs per kind, index sizes, encoded bytes",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
	cmd.Flags().String("format", "pretty", "output format (pretty|json)")
	return cmd
}

type statsReport struct {
	Store        string         `json:"store"`
	Files        int            `json:"files"`
	Stubs        int            `json:"stubs"`
	EncodedBytes int            `json:"encoded_bytes"`
	Kinds        map[string]int `json:"kinds"`
	Indexes      map[string]int `json:"indexes"`
}

func runStats(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format = strings.ToLower(format)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	s, err := openSession(cmd, ".")
	if err != nil {
		return err
	}
	res, store, err := s.loadIndex()
	if err != nil {
		return err
	}

	report := statsReport{
		Store:   s.cfg.StorePath(),
		Files:   len(res.Files),
		Kinds:   make(map[string]int),
		Indexes: make(map[string]int),
	}
	for _, f := range res.Files {
		report.Stubs += f.Tree.Len()
		report.EncodedBytes += len(f.Blob)
		f.Tree.Walk(func(n *stub.Node, _ int) bool {
			report.Kinds[n.Kind().String()]++
			return true
		})
	}
	for id, n := range store.Sizes() {
		report.Indexes[id.String()] = n
	}

	if format == "json" {
		enc := json.NewEncoder(s.out())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	out := s.out()
	_, _ = fmt.Fprintf(out, "snapshot %s\n", pathColor.Sprint(formatPathForOutput(s.cfg.Root, report.Store)))
	_, _ = fmt.Fprintf(out, "  files          %8d\n", report.Files)
	_, _ = fmt.Fprintf(out, "  stubs          %8d\n", report.Stubs)
	_, _ = fmt.Fprintf(out, "  encoded bytes  %8d\n", report.EncodedBytes)
	if report.Stubs > 0 {
		_, _ = fmt.Fprintf(out, "  bytes/stub     %8.1f\n", float64(report.EncodedBytes)/float64(report.Stubs))
	}
	_, _ = fmt.Fprintln(out, "kinds")
	for _, k := range slices.Sorted(maps.Keys(report.Kinds)) {
		_, _ = fmt.Fprintf(out, "  %-14s %8d\n", kindColor(stub.Kind(k)).Sprint(k), report.Kinds[k])
	}
	_, _ = fmt.Fprintln(out, "indexes")
	for _, id := range slices.Sorted(maps.Keys(report.Indexes)) {
		_, _ = fmt.Fprintf(out, "  %-28s %8d\n", id, report.Indexes[id])
	}
	s.printTimings()
	return nil
}
