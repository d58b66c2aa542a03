// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/papers/internal/journal"
	"github.com/pdiddy/papers/internal/reconcile"
	"github.com/pdiddy/papers/pkg/types"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func formatFlag(cmd *cobra.Command) (string, error) {
	f, _ := cmd.Flags().GetString("format")
	switch f {
	case formatText, formatJSON, formatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json, or yaml)", f)
	}
}

// render writes v as JSON or YAML, or calls text for the text format.
func render(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

func writeEntries(w io.Writer, entries []reconcile.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No extractions found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tLOCAL\tREMOTE\tTITLE")
	for _, e := range entries {
		local := "-"
		if e.Local {
			local = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Key, local, e.Remote, e.Title)
	}
	return tw.Flush()
}

func writeSummary(w io.Writer, r reconcile.Report) error {
	verb := "uploaded"
	if r.Direction == types.DirectionDownload {
		verb = "downloaded"
	}
	if r.DryRun {
		_, err := fmt.Fprintf(w, "\nDry run: %d would %s, %d would skip\n",
			r.Count(types.OutcomeWouldDo), r.Direction, r.Count(types.OutcomeWouldSkip))
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d %s, %d skipped, %d failed\n",
		r.Count(types.OutcomeDone), verb, r.Count(types.OutcomeSkipped), r.Count(types.OutcomeFailed))
	return err
}

func writeKeyStatus(w io.Writer, st reconcile.KeyStatus) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "key:\t%s\n", st.Key)
	fmt.Fprintf(tw, "local:\t%t\n", st.Local)
	fmt.Fprintf(tw, "in zotero:\t%t\n", st.InZotero)
	fmt.Fprintf(tw, "remote:\t%s\n", st.Remote)
	if st.AttachmentKey != "" {
		fmt.Fprintf(tw, "backup attachment:\t%s\n", st.AttachmentKey)
	}
	if m := st.Meta; m != nil {
		fmt.Fprintf(tw, "title:\t%s\n", m.Title)
		if m.DOI != "" {
			fmt.Fprintf(tw, "doi:\t%s\n", m.DOI)
		}
		if m.ExtractedAt != "" {
			fmt.Fprintf(tw, "extracted at:\t%s\n", m.ExtractedAt)
		}
		if m.ProcessingMode != "" {
			fmt.Fprintf(tw, "mode:\t%s\n", m.ProcessingMode)
		}
		if m.PDFSource != nil {
			fmt.Fprintf(tw, "source:\t%s\n", types.DescribeSource(m.PDFSource))
		}
	}
	return tw.Flush()
}

func writeEvents(w io.Writer, events []journal.Event) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(w, "No sync history.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tDIRECTION\tKEY\tOUTCOME\tDETAIL")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			ev.At.Local().Format("2006-01-02 15:04:05"), ev.Direction, ev.Key, ev.Outcome, ev.Detail)
	}
	return tw.Flush()
}
