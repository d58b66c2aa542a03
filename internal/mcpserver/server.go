// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mcpserver exposes work text acquisition as an MCP tool. When no
// source has the PDF it runs the interactive fallback over the calling
// session: sampling, elicitation, and progress notifications.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/pdiddy/papers/internal/acquire"
	"github.com/pdiddy/papers/internal/fallback"
	"github.com/pdiddy/papers/pkg/types"
)

// ToolWorkText is the name of the acquisition tool.
const ToolWorkText = "work_text"

// WorkTexter runs the acquisition pipeline.
type WorkTexter interface {
	WorkText(ctx context.Context, workID string, mode types.ProcessingMode) (*types.WorkTextResult, error)
}

// Fallback runs the interactive recovery.
type Fallback interface {
	Run(ctx context.Context, sess fallback.Session, req fallback.Request) (fallback.Outcome, error)
}

// Handler serves the work_text tool.
type Handler struct {
	Texts             WorkTexter
	Fallback          Fallback
	LibraryConfigured bool
	Log               *zap.Logger

	clientFrom func(ctx context.Context) client
}

// New builds an MCP server with the work_text tool registered.
func New(name, version string, h *Handler) *server.MCPServer {
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(false),
		server.WithElicitation(),
	)
	s.EnableSampling()
	s.AddTool(Tool(), h.HandleWorkText)
	return s
}

// ServeStdio serves s over stdin and stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// Tool describes work_text.
func Tool() mcp.Tool {
	return mcp.NewTool(ToolWorkText,
		mcp.WithDescription("Return the full text of a scholarly work as markdown. "+
			"Tries Zotero, open-access URLs, and the OpenAlex content API, and caches the result."),
		mcp.WithString("work_id",
			mcp.Required(),
			mcp.Description("OpenAlex ID (W123...), DOI, or arXiv ID"),
		),
		mcp.WithString("advanced",
			mcp.Description("Use DataLab conversion with this quality tier"),
			mcp.Enum(string(types.ModeFast), string(types.ModeBalanced), string(types.ModeAccurate)),
		),
	)
}

func (h *Handler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func (h *Handler) client(ctx context.Context) client {
	if h.clientFrom != nil {
		return h.clientFrom(ctx)
	}
	if s := server.ServerFromContext(ctx); s != nil {
		return s
	}
	return nil
}

// HandleWorkText implements the work_text tool. Failures are returned as
// tool errors, not protocol errors.
func (h *Handler) HandleWorkText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workID, err := req.RequireString("work_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, err := types.ParseProcessingMode(req.GetString("advanced", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := h.Texts.WorkText(ctx, workID, mode)
	if err == nil {
		return textResult(res), nil
	}
	var np *acquire.NoPDFError
	if !errors.As(err, &np) || h.Fallback == nil || np.Work == nil {
		return mcp.NewToolResultError(acquire.NoPDFMessage(err, h.LibraryConfigured)), nil
	}

	h.log().Info("no PDF source, starting interactive fallback", zap.String("work", workID))
	out, err := h.Fallback.Run(ctx, h.session(ctx, req), fallback.Request{WorkID: workID, Work: np.Work, Mode: mode})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if out.State == fallback.Found && out.Result != nil {
		return textResult(out.Result), nil
	}
	return mcp.NewToolResultError(Guidance(out, h.LibraryConfigured)), nil
}

func (h *Handler) session(ctx context.Context, req mcp.CallToolRequest) fallback.Session {
	c := h.client(ctx)
	if c == nil {
		return fallback.Session{}
	}
	sess := fallback.Session{Sampler: sampler{c}, Elicitor: elicitor{c}}
	if meta := req.Params.Meta; meta != nil && meta.ProgressToken != nil {
		sess.Progress = progress{c: c, token: meta.ProgressToken}
	}
	return sess
}

func textResult(res *types.WorkTextResult) *mcp.CallToolResult {
	return mcp.NewToolResultText(res.Text)
}

// Guidance is the next step shown when the fallback stops without text.
func Guidance(out fallback.Outcome, libraryConfigured bool) string {
	name := out.WorkID
	if out.Title != "" {
		name = fmt.Sprintf("%q (%s)", out.Title, out.WorkID)
	}
	switch {
	case out.LandingPage == "":
		return fmt.Sprintf("No PDF found for %s and no DOI is known. Add the PDF to your Zotero library manually, then retry.", name)
	case !libraryConfigured:
		return fmt.Sprintf("No PDF found for %s. Open %s to download it. Configure Zotero (ZOTERO_USER_ID, ZOTERO_API_KEY) so added papers are picked up automatically.",
			name, out.LandingPage)
	case out.State == fallback.Declined:
		return fmt.Sprintf("No PDF found for %s. When ready, open %s, add the paper to Zotero, and call %s again.",
			name, out.LandingPage, ToolWorkText)
	default:
		return fmt.Sprintf("No PDF found for %s. Open %s, add the paper with its PDF to Zotero, then retry.",
			name, out.LandingPage)
	}
}
