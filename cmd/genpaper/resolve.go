package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sadiq-codes/genpaper/internal/batch"
	"github.com/sadiq-codes/genpaper/internal/placeholder"
	"github.com/sadiq-codes/genpaper/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [file]",
	Short: "Resolve citation placeholders in a finished document",
	Long: `Resolve reads a document containing [[CITE:kind:value]] placeholders,
resolves each unique source against the configured catalogs, and writes the
document with placeholders replaced by inline citations to stdout. Reads
from stdin when no file is given.

Citations are persisted to the project's store; re-running on the same
document reuses existing citations and numbering.

With --refs, no document is spliced: the file names sources directly as a
JSON array of {"kind", "value"} entries, and the result is written as JSON
mapping each source to its cite key.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, _ := cmd.Flags().GetString("project")
		if projectID == "" {
			return fmt.Errorf("--project is required")
		}
		styleName, _ := cmd.Flags().GetString("style")

		if refsPath, _ := cmd.Flags().GetString("refs"); refsPath != "" {
			return resolveRefs(cmd, projectID, styleName, refsPath)
		}

		text, err := readInput(args)
		if err != nil {
			return err
		}

		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		occs, diags := placeholder.Parse(text)
		for _, d := range diags {
			fmt.Fprintf(os.Stderr, "warning: skipping malformed placeholder %q at offset %d: %s\n", d.Raw, d.Offset, d.Reason)
		}

		out := eng.orch.Process(cmd.Context(), projectID, occs, styleName)
		if out.Fatal != nil {
			return out.Fatal
		}
		if out.RateLimited {
			fmt.Fprintf(os.Stderr, "warning: batch rejected by rate limiter, retry after %s; placeholders degraded to fallbacks\n", out.RetryAfter)
		}

		fmt.Print(spliceDocument(text, occs, diags, out))
		fmt.Fprintf(os.Stderr, "Resolved %d, failed %d of %d unique sources (%d placeholders)\n",
			out.ResolvedCount, out.FailedCount, len(out.Rendered), len(occs))
		return nil
	},
}

// refEntry is one source in a --refs file.
type refEntry struct {
	Kind         string `json:"kind"`
	Value        string `json:"value"`
	FallbackText string `json:"fallbackText,omitempty"`
}

// refsResponse is the JSON result of a --refs run. CiteKeyMap is keyed by
// the canonical source key.
type refsResponse struct {
	CiteKeyMap    map[string]string `json:"citeKeyMap"`
	ResolvedCount int               `json:"resolvedCount"`
	FailedCount   int               `json:"failedCount"`
}

// resolveRefs resolves the sources listed in a --refs file and writes the
// cite key map to stdout as JSON.
func resolveRefs(cmd *cobra.Command, projectID, styleName, refsPath string) error {
	data, err := os.ReadFile(refsPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", refsPath, err)
	}
	var refs []refEntry
	if err := json.Unmarshal(data, &refs); err != nil {
		return fmt.Errorf("parsing %s: %w", refsPath, err)
	}

	occs, err := refsToOccurrences(refs)
	if err != nil {
		return err
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	out := eng.orch.Process(cmd.Context(), projectID, occs, styleName)
	if out.Fatal != nil {
		return out.Fatal
	}
	if out.RateLimited {
		fmt.Fprintf(os.Stderr, "warning: batch rejected by rate limiter, retry after %s\n", out.RetryAfter)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(refsResult(out))
}

// refsToOccurrences converts --refs entries to the orchestrator's input
// form. Entries with an unknown kind or empty value are rejected up front
// rather than sent to the resolver.
func refsToOccurrences(refs []refEntry) ([]placeholder.Occurrence, error) {
	occs := make([]placeholder.Occurrence, 0, len(refs))
	for i, r := range refs {
		kind := types.ParseKind(r.Kind)
		if kind == types.KindUnknown {
			return nil, fmt.Errorf("ref %d: unknown kind %q", i, r.Kind)
		}
		if r.Value == "" {
			return nil, fmt.Errorf("ref %d: empty value", i)
		}
		occs = append(occs, placeholder.Occurrence{
			Placeholder: types.Placeholder{
				Kind:         kind,
				Value:        r.Value,
				FallbackText: r.FallbackText,
			},
		})
	}
	return occs, nil
}

// refsResult projects a batch outcome onto the --refs response shape.
// Sources that fell back carry no cite key and are omitted from the map.
func refsResult(out batch.Outcome) refsResponse {
	resp := refsResponse{
		CiteKeyMap:    make(map[string]string, len(out.Results)),
		ResolvedCount: out.ResolvedCount,
		FailedCount:   out.FailedCount,
	}
	for key, res := range out.Results {
		resp.CiteKeyMap[key] = res.CiteKey
	}
	return resp
}

// spliceDocument replaces every placeholder and malformed token in text with
// its resolved inline citation or fallback.
func spliceDocument(text string, occs []placeholder.Occurrence, diags []placeholder.Diagnostic, out batch.Outcome) string {
	type edit struct {
		start, end  int
		replacement string
	}
	edits := make([]edit, 0, len(occs)+len(diags))
	for _, occ := range occs {
		key := placeholder.Key(occ.Placeholder)
		replacement, ok := out.Rendered[key]
		if !ok {
			replacement = batch.Fallback(occ.Placeholder)
		}
		edits = append(edits, edit{occ.Start, occ.End, replacement})
	}
	for _, d := range diags {
		edits = append(edits, edit{d.Offset, d.Offset + len(d.Raw), "(Citation unavailable)"})
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	var b []byte
	prev := 0
	for _, e := range edits {
		b = append(b, text[prev:e.start]...)
		b = append(b, e.replacement...)
		prev = e.end
	}
	b = append(b, text[prev:]...)
	return string(b)
}

func readInput(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}

func init() {
	resolveCmd.Flags().String("project", "", "project identifier scoping the citation store")
	resolveCmd.Flags().String("style", "numeric", "inline citation style: numeric or author-year")
	resolveCmd.Flags().String("refs", "", "resolve a JSON array of refs instead of splicing a document")

	rootCmd.AddCommand(resolveCmd)
}
