// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/pdiddy/papers/internal/acquire"
	"github.com/pdiddy/papers/internal/fallback"
	"github.com/pdiddy/papers/pkg/types"
)

var textCmd = &cobra.Command{
	Use:   "text <work-id>",
	Short: "Print the full text of a work",
	Long: `Text resolves an OpenAlex ID, DOI, or arXiv ID and prints the work's full
text as markdown. Sources are tried in order: Zotero storage on this machine,
the Zotero web library, open-access PDF URLs, and the OpenAlex content API.
Results are cached; a second call for the same work reads the cache.

--advanced converts with DataLab at the given quality tier (fast, balanced,
accurate) and backs the result up to Zotero when the PDF came from there.

When no source has a PDF and Zotero is configured, text opens the paper's DOI
page and asks whether you added it to Zotero. On yes it polls the library
until the paper appears. --no-prompt, or a stdin that is not a terminal,
skips the question.`,
	Args: cobra.ExactArgs(1),
	RunE: runText,
}

func init() {
	textCmd.Flags().String("advanced", "", "DataLab processing mode: fast, balanced, or accurate")
	textCmd.Flags().Bool("json", false, "print the result with its provenance as JSON")
	textCmd.Flags().Bool("no-prompt", false, "fail instead of asking for help when no PDF is found")

	rootCmd.AddCommand(textCmd)
}

func runText(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("advanced")
	mode, err := types.ParseProcessingMode(raw)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	noPrompt, _ := cmd.Flags().GetBool("no-prompt")

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	p, err := a.pipeline(cmd.Context())
	if err != nil {
		return err
	}

	configured := a.zotero != nil
	res, err := p.WorkText(cmd.Context(), args[0], mode)
	var np *acquire.NoPDFError
	if errors.As(err, &np) {
		if noPrompt || np.Work == nil || !isatty.IsTerminal(os.Stdin.Fd()) {
			return errors.New(acquire.NoPDFMessage(err, configured))
		}
		coord := &fallback.Coordinator{
			Acquirer:          p,
			LibraryConfigured: configured,
			Config:            a.cfg.Fallback,
			Log:               a.log.Named("fallback"),
		}
		elicitor := newTerminalElicitor(cmd.InOrStdin(), os.Stderr)
		elicitor.open = openBrowser
		sess := fallback.Session{Elicitor: elicitor, Progress: lineProgress{w: os.Stderr}}
		res, err = recoverText(cmd.Context(), coord, sess, np, mode, configured)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(os.Stderr, "source: %s\n", types.DescribeSource(res.Source))
	fmt.Fprintln(out, res.Text)
	return nil
}

// fallbackRunner is the interactive recovery used when no source has a PDF.
type fallbackRunner interface {
	Run(ctx context.Context, sess fallback.Session, req fallback.Request) (fallback.Outcome, error)
}

// recoverText runs the terminal fallback for np and turns every outcome but
// Found into an error naming the next step.
func recoverText(ctx context.Context, fb fallbackRunner, sess fallback.Session, np *acquire.NoPDFError, mode types.ProcessingMode, configured bool) (*types.WorkTextResult, error) {
	out, err := fb.Run(ctx, sess, fallback.Request{WorkID: np.WorkID, Work: np.Work, Mode: mode})
	if err != nil {
		return nil, err
	}
	switch out.State {
	case fallback.Found:
		return out.Result, nil
	case fallback.Declined:
		return nil, fmt.Errorf("no PDF found for %s; open %s, add the paper to Zotero, and run papers text %s again",
			np.WorkID, out.LandingPage, np.WorkID)
	default:
		return nil, errors.New(acquire.NoPDFMessage(np, configured))
	}
}
