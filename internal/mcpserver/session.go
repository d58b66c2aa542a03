// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pdiddy/papers/internal/fallback"
)

// client is the per-session surface of *server.MCPServer used by the
// fallback adapters.
type client interface {
	RequestSampling(ctx context.Context, request mcp.CreateMessageRequest) (*mcp.CreateMessageResult, error)
	RequestElicitation(ctx context.Context, request mcp.ElicitationRequest) (*mcp.ElicitationResult, error)
	SendNotificationToClient(ctx context.Context, method string, params map[string]any) error
}

const samplingMaxTokens = 256

type sampler struct{ c client }

func (s sampler) Sample(ctx context.Context, prompt string) (string, error) {
	res, err := s.c.RequestSampling(ctx, mcp.CreateMessageRequest{
		CreateMessageParams: mcp.CreateMessageParams{
			Messages: []mcp.SamplingMessage{{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(prompt),
			}},
			MaxTokens: samplingMaxTokens,
		},
	})
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", errors.New("empty sampling result")
	}
	return textOf(res.Content)
}

// textOf pulls the text out of sampled content, which arrives either typed
// or as a decoded JSON object.
func textOf(content any) (string, error) {
	switch c := content.(type) {
	case mcp.TextContent:
		return c.Text, nil
	case *mcp.TextContent:
		return c.Text, nil
	case map[string]any:
		if t, ok := c["text"].(string); ok {
			return t, nil
		}
	case string:
		return c, nil
	}
	return "", fmt.Errorf("sampling returned non-text content %T", content)
}

type elicitor struct{ c client }

func (e elicitor) Elicit(ctx context.Context, message, url string) (fallback.Answer, error) {
	res, err := e.c.RequestElicitation(ctx, mcp.ElicitationRequest{
		Params: mcp.ElicitationParams{
			Message: message,
			RequestedSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"added": map[string]any{
						"type":        "boolean",
						"title":       "Added to Zotero",
						"description": "Confirm once the PDF from " + url + " is in your library",
					},
				},
			},
		},
	})
	if err != nil {
		return fallback.Cancel, err
	}
	if res == nil {
		return fallback.Cancel, errors.New("empty elicitation result")
	}
	switch res.Action {
	case mcp.ElicitationResponseActionAccept:
		return fallback.Accept, nil
	case mcp.ElicitationResponseActionDecline:
		return fallback.Decline, nil
	default:
		return fallback.Cancel, nil
	}
}

// progress forwards poll progress as notifications/progress for token.
type progress struct {
	c     client
	token mcp.ProgressToken
}

func (p progress) Report(ctx context.Context, n, total int, message string) {
	_ = p.c.SendNotificationToClient(ctx, "notifications/progress", map[string]any{
		"progressToken": p.token,
		"progress":      n,
		"total":         total,
		"message":       message,
	})
}
