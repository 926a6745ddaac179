package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stubtree/internal/elements"
	"stubtree/internal/index"
	"stubtree/internal/version"
)

type versionPayload struct {
	Tool       string   `json:"tool"`
	Version    string   `json:"version"`
	StubFormat int      `json:"stub_format"`
	Kinds      []string `json:"kinds"`
	GitCommit  string   `json:"git_commit,omitempty"`
	BuildDate  string   `json:"build_date,omitempty"`
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the stubtree version and stub format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			switch strings.ToLower(format) {
			case "pretty":
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Describe(elements.FormatVersion))
				return err
			case "json":
				var kinds []string
				for _, k := range elements.NewDefaultRegistry(index.DefaultPolicy()).Kinds() {
					kinds = append(kinds, k.String())
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(versionPayload{
					Tool:       appName,
					Version:    strings.TrimSpace(version.Version),
					StubFormat: elements.FormatVersion,
					Kinds:      kinds,
					GitCommit:  strings.TrimSpace(version.GitCommit),
					BuildDate:  strings.TrimSpace(version.BuildDate),
				})
			default:
				return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
			}
		},
	}
	cmd.Flags().String("format", "pretty", "output format (pretty|json)")
	return cmd
}
