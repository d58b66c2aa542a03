// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/papers/internal/fallback"
	"github.com/pdiddy/papers/internal/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the work_text tool over MCP on stdio",
	Long: `Serve runs an MCP server on stdin and stdout with one tool, work_text.
When no PDF source has the paper, the server asks the client's model for a
PDF URL (sampling), then asks the user to add the paper to Zotero
(elicitation), and polls the library with progress notifications until the
paper appears or the wait runs out. Diagnostics go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	p, err := a.pipeline(cmd.Context())
	if err != nil {
		return err
	}
	configured := a.zotero != nil
	h := &mcpserver.Handler{
		Texts: p,
		Fallback: &fallback.Coordinator{
			Acquirer:          p,
			LibraryConfigured: configured,
			Config:            a.cfg.Fallback,
			Log:               a.log.Named("fallback"),
		},
		LibraryConfigured: configured,
		Log:               a.log.Named("mcp"),
	}
	a.log.Info("serving MCP on stdio", zap.String("version", version), zap.Bool("zotero", configured))
	return mcpserver.ServeStdio(mcpserver.New("papers", version, h))
}
