// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pdiddy/papers/internal/fallback"
)

// terminalElicitor asks on the terminal whether the user has added the
// paper to Zotero. open, when set, shows the landing page first.
type terminalElicitor struct {
	in   *bufio.Reader
	out  io.Writer
	open func(ctx context.Context, url string) error
}

func newTerminalElicitor(in io.Reader, out io.Writer) *terminalElicitor {
	return &terminalElicitor{in: bufio.NewReader(in), out: out}
}

func (e *terminalElicitor) Elicit(ctx context.Context, message, url string) (fallback.Answer, error) {
	fmt.Fprintln(e.out, message)
	if e.open != nil && url != "" {
		if err := e.open(ctx, url); err != nil {
			fmt.Fprintf(e.out, "could not open a browser: %v\n", err)
		}
	}
	fmt.Fprint(e.out, "Added it to Zotero? Wait for it to sync [y/N]: ")
	line, err := e.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fallback.Cancel, err
	}
	if errors.Is(err, io.EOF) && line == "" {
		fmt.Fprintln(e.out)
		return fallback.Cancel, nil
	}
	return parseAnswer(line), nil
}

// parseAnswer maps a y/N reply; anything but yes declines.
func parseAnswer(line string) fallback.Answer {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return fallback.Accept
	default:
		return fallback.Decline
	}
}

// lineProgress writes one line per poll update.
type lineProgress struct {
	w io.Writer
}

func (p lineProgress) Report(_ context.Context, progress, total int, message string) {
	fmt.Fprintf(p.w, "[%d/%d] %s\n", progress, total, message)
}

// openBrowser opens url with the platform's default handler.
func openBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	return cmd.Start()
}
