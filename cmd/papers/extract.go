// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/papers/internal/journal"
	"github.com/pdiddy/papers/internal/reconcile"
	"github.com/pdiddy/papers/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Manage cached extractions and their Zotero backups",
	Long: `Extract lists the local extraction cache against the backups stored in
Zotero and moves extractions between the two. Uploads only add bundles for
keys with no backup; downloads only fill keys missing locally. Neither side
is ever overwritten.`,
}

var extractListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached and backed-up extractions",
	Args:  cobra.NoArgs,
	RunE:  runExtractList,
}

var extractUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Back up local extractions that have no Zotero backup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(cmd, types.DirectionUpload)
	},
}

var extractDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Restore Zotero backups missing from the local cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(cmd, types.DirectionDownload)
	},
}

var extractGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show local and Zotero state for one key",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtractGet,
}

var extractTextCmd = &cobra.Command{
	Use:   "text <key>",
	Short: "Print the cached markdown for a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printCached(cmd, args[0], false)
	},
}

var extractJSONCmd = &cobra.Command{
	Use:   "json <key>",
	Short: "Print the cached structured JSON for a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printCached(cmd, args[0], true)
	},
}

var extractHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded upload and download outcomes",
	Args:  cobra.NoArgs,
	RunE:  runExtractHistory,
}

func init() {
	for _, c := range []*cobra.Command{extractListCmd, extractUploadCmd, extractDownloadCmd, extractGetCmd, extractHistoryCmd} {
		c.Flags().String("format", formatText, "output format: text, json, or yaml")
	}
	extractUploadCmd.Flags().Bool("dry-run", false, "report what would be uploaded without writing")
	extractDownloadCmd.Flags().Bool("dry-run", false, "report what would be downloaded without writing")
	extractHistoryCmd.Flags().Int("limit", 50, "maximum number of events")
	extractHistoryCmd.Flags().String("key", "", "only events for this key")
	extractHistoryCmd.Flags().String("direction", "", "only upload or download events")

	extractCmd.AddCommand(extractListCmd, extractUploadCmd, extractDownloadCmd,
		extractGetCmd, extractTextCmd, extractJSONCmd, extractHistoryCmd)
	rootCmd.AddCommand(extractCmd)
}

// syncer builds a Syncer over the configured library. The returned close
// function releases the journal.
func syncer(a *app, out io.Writer) (*reconcile.Syncer, func() error, error) {
	lib, err := a.requireZotero()
	if err != nil {
		return nil, nil, err
	}
	j, err := journal.Open(journal.DefaultPath(a.store.Root()))
	if err != nil {
		return nil, nil, err
	}
	s := &reconcile.Syncer{
		Lib:     lib,
		Store:   a.store,
		Journal: j,
		Out:     out,
		Log:     a.log.Named("sync"),
	}
	return s, j.Close, nil
}

func runExtractList(cmd *cobra.Command, args []string) error {
	format, err := formatFlag(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	s, closeJournal, err := syncer(a, nil)
	if err != nil {
		return err
	}
	defer closeJournal()

	entries, err := s.List(cmd.Context())
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), format, entries, func(w io.Writer) error {
		return writeEntries(w, entries)
	})
}

func runTransfer(cmd *cobra.Command, dir types.SyncDirection) error {
	format, err := formatFlag(cmd)
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	// Per-key progress lines only make sense for the text format.
	var progress io.Writer
	if format == formatText {
		progress = cmd.OutOrStdout()
	}
	s, closeJournal, err := syncer(a, progress)
	if err != nil {
		return err
	}
	defer closeJournal()

	var report reconcile.Report
	if dir == types.DirectionUpload {
		report, err = s.Upload(cmd.Context(), dryRun)
	} else {
		report, err = s.Download(cmd.Context(), dryRun)
	}
	if err != nil {
		return err
	}

	if err := render(cmd.OutOrStdout(), format, report, func(w io.Writer) error {
		return writeSummary(w, report)
	}); err != nil {
		return err
	}
	if report.HasFailures() {
		return fmt.Errorf("%d key(s) failed %s", report.Count(types.OutcomeFailed), dir)
	}
	return nil
}

func runExtractGet(cmd *cobra.Command, args []string) error {
	format, err := formatFlag(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	s, closeJournal, err := syncer(a, nil)
	if err != nil {
		return err
	}
	defer closeJournal()

	st, err := s.Inspect(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), format, st, func(w io.Writer) error {
		return writeKeyStatus(w, st)
	})
}

func printCached(cmd *cobra.Command, key string, asJSON bool) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	var (
		text string
		ok   bool
	)
	if asJSON {
		text, ok = a.store.ReadJSON(key)
	} else {
		text, ok = a.store.ReadMarkdown(key)
	}
	if !ok {
		return fmt.Errorf("no cached extraction for %s", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func runExtractHistory(cmd *cobra.Command, args []string) error {
	format, err := formatFlag(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	key, _ := cmd.Flags().GetString("key")
	direction, _ := cmd.Flags().GetString("direction")
	switch types.SyncDirection(direction) {
	case "", types.DirectionUpload, types.DirectionDownload:
	default:
		return fmt.Errorf("unknown direction %q (want upload or download)", direction)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	j, err := journal.Open(journal.DefaultPath(a.store.Root()))
	if err != nil {
		return err
	}
	defer j.Close()

	events, err := j.List(cmd.Context(), journal.Query{
		Key:       key,
		Direction: types.SyncDirection(direction),
		Limit:     limit,
	})
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), format, events, func(w io.Writer) error {
		return writeEvents(w, events)
	})
}
