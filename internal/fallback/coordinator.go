// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fallback

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/papers/internal/openalex"
	"github.com/pdiddy/papers/pkg/types"
)

// Defaults for the poll loop.
const (
	DefaultInitialDelay = 5 * time.Second
	DefaultInterval     = 2 * time.Second
	DefaultMaxRetries   = 55
)

// Acquirer is the slice of the acquisition pipeline the fallback reuses.
type Acquirer interface {
	FromURL(ctx context.Context, workID string, w *openalex.Work, url string, mode types.ProcessingMode) (*types.WorkTextResult, error)
	FromLibrary(ctx context.Context, workID string, w *openalex.Work, mode types.ProcessingMode) (*types.WorkTextResult, bool, error)
}

// Sampler asks the connected model a question and returns its text reply.
type Sampler interface {
	Sample(ctx context.Context, prompt string) (string, error)
}

// Answer is the user's reply to an elicitation.
type Answer int

const (
	Accept Answer = iota
	Decline
	Cancel
)

// Elicitor asks the user to act and reports their answer.
type Elicitor interface {
	Elicit(ctx context.Context, message, url string) (Answer, error)
}

// Progress receives poll progress. progress never decreases.
type Progress interface {
	Report(ctx context.Context, progress, total int, message string)
}

// Session is what the calling client supports. Nil members are
// unsupported capabilities.
type Session struct {
	Sampler  Sampler
	Elicitor Elicitor
	Progress Progress
}

// Request names the work that could not be acquired.
type Request struct {
	WorkID string
	Work   *openalex.Work
	Mode   types.ProcessingMode
}

// Outcome is where the machine stopped. Result is set only for Found.
// The identifying fields let the caller phrase a next step for Declined
// and Unavailable.
type Outcome struct {
	State       State
	Result      *types.WorkTextResult
	WorkID      string
	Title       string
	DOI         string
	LandingPage string
}

// TimedOutError reports that the work never appeared in the library.
type TimedOutError struct {
	WorkID string
	Title  string
	DOI    string
}

func (e *TimedOutError) Error() string {
	name := e.WorkID
	if e.Title != "" {
		name = fmt.Sprintf("%q (%s)", e.Title, e.WorkID)
	}
	return fmt.Sprintf("timed out waiting for %s to appear in your Zotero library; add the PDF and retry", name)
}

// Coordinator runs the fallback machine.
type Coordinator struct {
	Acquirer          Acquirer
	LibraryConfigured bool
	Config            types.FallbackConfig
	Log               *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func (c *Coordinator) log() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

func (c *Coordinator) wait(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Coordinator) settings() (initial, interval time.Duration, retries int) {
	initial, interval, retries = c.Config.InitialDelay, c.Config.Interval, c.Config.MaxRetries
	if initial <= 0 {
		initial = DefaultInitialDelay
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	return initial, interval, retries
}

// Run drives the machine from Start to a terminal state. The error is a
// *TimedOutError when polling exhausts its budget, or the context error
// when ctx ends first.
func (c *Coordinator) Run(ctx context.Context, sess Session, req Request) (Outcome, error) {
	doi := req.Work.BareDOI()
	out := Outcome{
		WorkID:      req.WorkID,
		Title:       req.Work.DisplayTitle(),
		DOI:         doi,
		LandingPage: openalex.LandingPage(doi),
	}
	env := Env{
		HasDOI:            doi != "",
		CanSample:         sess.Sampler != nil,
		CanElicit:         sess.Elicitor != nil,
		LibraryConfigured: c.LibraryConfigured,
	}

	state := Next(Start, env, Failed)
	for !state.Terminal() {
		c.log().Debug("fallback step", zap.String("work", req.WorkID), zap.Stringer("state", state))
		var r Result
		var err error
		switch state {
		case TrySampling:
			r, err = c.trySampling(ctx, sess.Sampler, req, &out)
		case TryElicitation:
			r = c.tryElicitation(ctx, sess.Elicitor, &out)
		case Polling:
			r, err = c.poll(ctx, sess.Progress, req, &out)
		}
		if err != nil {
			return out, err
		}
		state = Next(state, env, r)
	}
	out.State = state
	if state == TimedOut {
		return out, &TimedOutError{WorkID: out.WorkID, Title: out.Title, DOI: out.DOI}
	}
	return out, nil
}

func (c *Coordinator) trySampling(ctx context.Context, s Sampler, req Request, out *Outcome) (Result, error) {
	reply, err := s.Sample(ctx, samplingPrompt(out.Title, out.DOI))
	if err != nil {
		if ctx.Err() != nil {
			return Errored, ctx.Err()
		}
		c.log().Debug("sampling unavailable", zap.Error(err))
		return Failed, nil
	}
	candidate, ok := ParseURLReply(reply)
	if !ok {
		c.log().Debug("sampling reply rejected", zap.String("reply", reply))
		return Failed, nil
	}
	res, err := c.Acquirer.FromURL(ctx, req.WorkID, req.Work, candidate, req.Mode)
	if err != nil {
		if ctx.Err() != nil {
			return Errored, ctx.Err()
		}
		c.log().Info("sampled URL did not yield a PDF", zap.String("url", candidate), zap.Error(err))
		return Failed, nil
	}
	out.Result = res
	return Succeeded, nil
}

func (c *Coordinator) tryElicitation(ctx context.Context, e Elicitor, out *Outcome) Result {
	msg := fmt.Sprintf("No PDF was found for %q. Open %s, add the paper with its PDF to your Zotero library, then accept to continue.",
		out.Title, out.LandingPage)
	answer, err := e.Elicit(ctx, msg, out.LandingPage)
	if err != nil {
		c.log().Debug("elicitation unavailable", zap.Error(err))
		return Errored
	}
	if answer == Accept {
		return Accepted
	}
	return Rejected
}

// poll waits once, then checks the library up to the retry budget. Total
// progress is the retry budget plus the initial wait; misses stop one short
// of it.
func (c *Coordinator) poll(ctx context.Context, p Progress, req Request, out *Outcome) (Result, error) {
	initial, interval, retries := c.settings()
	total := retries + 1
	report := func(n int, msg string) {
		if p != nil {
			p.Report(ctx, n, total, msg)
		}
	}

	if err := c.wait(ctx, initial); err != nil {
		return Errored, err
	}
	report(1, "waiting for the paper to appear in Zotero")

	for i := 1; i <= retries; i++ {
		if err := c.wait(ctx, interval); err != nil {
			return Errored, err
		}
		res, ok, err := c.Acquirer.FromLibrary(ctx, req.WorkID, req.Work, req.Mode)
		if err != nil {
			if ctx.Err() != nil {
				return Errored, ctx.Err()
			}
			c.log().Debug("library poll failed", zap.Int("attempt", i), zap.Error(err))
		}
		if ok {
			out.Result = res
			report(total, "found in Zotero")
			return Succeeded, nil
		}
		// Only a match reaches total.
		report(min(i+1, total-1), fmt.Sprintf("checked Zotero (%d/%d)", i, retries))
	}
	return Failed, nil
}

func samplingPrompt(title, doi string) string {
	return fmt.Sprintf("Find a direct, openly accessible PDF URL for the paper %q (DOI %s). "+
		"Reply with the URL only, or with the single word none if you do not know one.", title, doi)
}

// ParseURLReply extracts a candidate http(s) URL from a model reply. Empty
// replies, "none", and anything that is not a single absolute URL are
// rejected.
func ParseURLReply(reply string) (string, bool) {
	s := strings.TrimSpace(reply)
	// Wrapping quotes and trailing punctuation nest in either order.
	for prev := ""; s != prev; {
		prev = s
		s = strings.TrimRight(s, ".,;)")
		s = strings.Trim(s, "<>\"'`")
	}
	if s == "" || strings.EqualFold(s, "none") || strings.ContainsAny(s, " \t\n") {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return s, true
}

// IsTimedOut reports whether err is a *TimedOutError.
func IsTimedOut(err error) bool {
	var te *TimedOutError
	return errors.As(err, &te)
}
