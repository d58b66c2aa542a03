// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fallback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/papers/internal/openalex"
	"github.com/pdiddy/papers/pkg/types"
)

func TestNext(t *testing.T) {
	all := Env{HasDOI: true, CanSample: true, CanElicit: true, LibraryConfigured: true}
	tests := []struct {
		name string
		from State
		env  Env
		r    Result
		want State
	}{
		{"start samples when possible", Start, all, Failed, TrySampling},
		{"start without sampling elicits", Start, Env{HasDOI: true, CanElicit: true, LibraryConfigured: true}, Failed, TryElicitation},
		{"start without DOI", Start, Env{CanSample: true, CanElicit: true, LibraryConfigured: true}, Failed, Unavailable},
		{"start without library skips elicitation", Start, Env{HasDOI: true, CanElicit: true}, Failed, Unavailable},
		{"sampling hit", TrySampling, all, Succeeded, Found},
		{"sampling miss falls through", TrySampling, all, Failed, TryElicitation},
		{"sampling miss without elicitation", TrySampling, Env{HasDOI: true, CanSample: true}, Failed, Unavailable},
		{"elicitation accepted", TryElicitation, all, Accepted, Polling},
		{"elicitation declined", TryElicitation, all, Rejected, Declined},
		{"elicitation error", TryElicitation, all, Errored, Unavailable},
		{"poll hit", Polling, all, Succeeded, Found},
		{"poll exhausted", Polling, all, Failed, TimedOut},
		{"terminal is absorbing", Declined, all, Succeeded, Declined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Next(tt.from, tt.env, tt.r))
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "timed_out", TimedOut.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, Unavailable.Terminal())
	assert.False(t, Polling.Terminal())
}

func TestParseURLReply(t *testing.T) {
	tests := []struct {
		reply string
		want  string
		ok    bool
	}{
		{"https://arxiv.org/pdf/1706.03762", "https://arxiv.org/pdf/1706.03762", true},
		{"  <https://example.org/a.pdf>.\n", "https://example.org/a.pdf", true},
		{"\"https://example.org/a.pdf.\"", "https://example.org/a.pdf", true},
		{"(<https://example.org/a.pdf>);", "", false},
		{"https://example.org/a.pdf),", "https://example.org/a.pdf", true},
		{"none", "", false},
		{"None", "", false},
		{"", "", false},
		{"I think it is at https://example.org/a.pdf", "", false},
		{"ftp://example.org/a.pdf", "", false},
		{"example.org/a.pdf", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			got, ok := ParseURLReply(tt.reply)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeAcquirer struct {
	urlErr   error
	urls     []string
	foundOn  int // FromLibrary succeeds on this call; 0 never
	libCalls int
	libErr   error
}

func (f *fakeAcquirer) FromURL(_ context.Context, workID string, _ *openalex.Work, url string, _ types.ProcessingMode) (*types.WorkTextResult, error) {
	f.urls = append(f.urls, url)
	if f.urlErr != nil {
		return nil, f.urlErr
	}
	return &types.WorkTextResult{Text: "sampled", WorkID: workID, Source: types.DirectURL{URL: url}}, nil
}

func (f *fakeAcquirer) FromLibrary(_ context.Context, workID string, _ *openalex.Work, _ types.ProcessingMode) (*types.WorkTextResult, bool, error) {
	f.libCalls++
	if f.foundOn > 0 && f.libCalls == f.foundOn {
		return &types.WorkTextResult{Text: "polled", WorkID: workID, Source: types.RemoteLibrary{ItemKey: "ATT00001"}}, true, nil
	}
	return nil, false, f.libErr
}

type fakeSampler struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeSampler) Sample(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

type fakeElicitor struct {
	answer Answer
	err    error
	url    string
}

func (f *fakeElicitor) Elicit(_ context.Context, _ string, url string) (Answer, error) {
	f.url = url
	return f.answer, f.err
}

type progressEvent struct{ progress, total int }

type recordingProgress struct {
	events []progressEvent
}

func (r *recordingProgress) Report(_ context.Context, progress, total int, _ string) {
	r.events = append(r.events, progressEvent{progress, total})
}

func newCoordinator(acq Acquirer) (*Coordinator, *[]time.Duration) {
	var sleeps []time.Duration
	c := &Coordinator{
		Acquirer:          acq,
		LibraryConfigured: true,
		sleep: func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		},
	}
	return c, &sleeps
}

func testRequest() Request {
	return Request{
		WorkID: "W42",
		Work: &openalex.Work{
			ID:    "https://openalex.org/W42",
			DOI:   "https://doi.org/10.1234/x",
			Title: "Attention",
		},
	}
}

func TestRun_SamplingFound(t *testing.T) {
	acq := &fakeAcquirer{}
	c, _ := newCoordinator(acq)
	s := &fakeSampler{reply: "https://example.org/x.pdf"}

	out, err := c.Run(context.Background(), Session{Sampler: s, Elicitor: &fakeElicitor{}}, testRequest())
	require.NoError(t, err)
	assert.Equal(t, Found, out.State)
	assert.Equal(t, "sampled", out.Result.Text)
	assert.Equal(t, []string{"https://example.org/x.pdf"}, acq.urls)
	assert.Contains(t, s.prompt, "10.1234/x")
	assert.Zero(t, acq.libCalls)
}

func TestRun_SamplingRejectedFallsThrough(t *testing.T) {
	tests := []struct {
		name    string
		sampler *fakeSampler
		acq     *fakeAcquirer
	}{
		{"none reply", &fakeSampler{reply: "none"}, &fakeAcquirer{foundOn: 1}},
		{"sampling error", &fakeSampler{err: errors.New("method not found")}, &fakeAcquirer{foundOn: 1}},
		{"URL not a PDF", &fakeSampler{reply: "https://example.org/landing"}, &fakeAcquirer{foundOn: 1, urlErr: errors.New("not a pdf")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newCoordinator(tt.acq)
			out, err := c.Run(context.Background(), Session{Sampler: tt.sampler, Elicitor: &fakeElicitor{answer: Accept}}, testRequest())
			require.NoError(t, err)
			assert.Equal(t, Found, out.State)
			assert.Equal(t, "polled", out.Result.Text)
		})
	}
}

// A match on the tenth poll returns at once with a full progress bar.
func TestRun_PollFoundOnTenthRetry(t *testing.T) {
	acq := &fakeAcquirer{foundOn: 10}
	c, sleeps := newCoordinator(acq)
	prog := &recordingProgress{}
	el := &fakeElicitor{answer: Accept}

	out, err := c.Run(context.Background(), Session{Elicitor: el, Progress: prog}, testRequest())
	require.NoError(t, err)
	assert.Equal(t, Found, out.State)
	assert.Equal(t, "polled", out.Result.Text)
	assert.Equal(t, "https://doi.org/10.1234/x", el.url)

	assert.Equal(t, 10, acq.libCalls, "no retries after the match")
	require.Len(t, *sleeps, 11)
	assert.Equal(t, DefaultInitialDelay, (*sleeps)[0])
	assert.Equal(t, DefaultInterval, (*sleeps)[1])

	require.Len(t, prog.events, 11)
	last := prog.events[len(prog.events)-1]
	assert.Equal(t, 56, last.total)
	assert.Equal(t, last.total, last.progress)
	for i := 1; i < len(prog.events); i++ {
		assert.Greater(t, prog.events[i].progress, prog.events[i-1].progress)
	}
}

func TestRun_PollTimesOut(t *testing.T) {
	acq := &fakeAcquirer{libErr: errors.New("transient")}
	c, _ := newCoordinator(acq)
	c.Config = types.FallbackConfig{MaxRetries: 3}
	prog := &recordingProgress{}

	out, err := c.Run(context.Background(), Session{Elicitor: &fakeElicitor{answer: Accept}, Progress: prog}, testRequest())
	assert.Equal(t, TimedOut, out.State)
	var te *TimedOutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "W42", te.WorkID)
	assert.Contains(t, err.Error(), `"Attention"`)
	assert.True(t, IsTimedOut(err))
	assert.Equal(t, 3, acq.libCalls)
	assert.Equal(t, []progressEvent{{1, 4}, {2, 4}, {3, 4}, {3, 4}}, prog.events)
	for _, ev := range prog.events {
		assert.Less(t, ev.progress, ev.total, "a timeout never reports completion")
	}
}

func TestRun_Declined(t *testing.T) {
	for _, a := range []Answer{Decline, Cancel} {
		acq := &fakeAcquirer{}
		c, _ := newCoordinator(acq)
		out, err := c.Run(context.Background(), Session{Elicitor: &fakeElicitor{answer: a}}, testRequest())
		require.NoError(t, err)
		assert.Equal(t, Declined, out.State)
		assert.Equal(t, "https://doi.org/10.1234/x", out.LandingPage)
		assert.Zero(t, acq.libCalls)
	}
}

func TestRun_Unavailable(t *testing.T) {
	tests := []struct {
		name string
		sess Session
		lib  bool
		req  Request
	}{
		{"no capabilities", Session{}, true, testRequest()},
		{"elicitation errors", Session{Elicitor: &fakeElicitor{err: errors.New("unsupported")}}, true, testRequest()},
		{"library not configured", Session{Elicitor: &fakeElicitor{}}, false, testRequest()},
		{"no DOI", Session{Sampler: &fakeSampler{reply: "https://x.org/a.pdf"}, Elicitor: &fakeElicitor{}}, true,
			Request{WorkID: "W1", Work: &openalex.Work{ID: "W1", Title: "T"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acq := &fakeAcquirer{}
			c, _ := newCoordinator(acq)
			c.LibraryConfigured = tt.lib
			out, err := c.Run(context.Background(), tt.sess, tt.req)
			require.NoError(t, err)
			assert.Equal(t, Unavailable, out.State)
			assert.Nil(t, out.Result)
			assert.Empty(t, acq.urls)
		})
	}
}

func TestRun_CancelledDuringPoll(t *testing.T) {
	acq := &fakeAcquirer{}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{Acquirer: acq, LibraryConfigured: true}
	calls := 0
	c.sleep = func(ctx context.Context, _ time.Duration) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return ctx.Err()
	}

	_, err := c.Run(ctx, Session{Elicitor: &fakeElicitor{answer: Accept}}, testRequest())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, acq.libCalls)
}
