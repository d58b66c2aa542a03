// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fallback drives the interactive recovery used when no source has
// a work's PDF: ask the connected model for a URL, ask the user to add the
// work to Zotero, then poll the library until it shows up.
package fallback

// State is a step of the fallback machine.
type State int

const (
	Start State = iota
	TrySampling
	TryElicitation
	Polling
	Found
	TimedOut
	Declined
	Unavailable
)

var stateNames = [...]string{
	Start:          "start",
	TrySampling:    "try_sampling",
	TryElicitation: "try_elicitation",
	Polling:        "polling",
	Found:          "found",
	TimedOut:       "timed_out",
	Declined:       "declined",
	Unavailable:    "unavailable",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether the machine stops in s.
func (s State) Terminal() bool {
	return s >= Found
}

// Env is what the caller's session and configuration make possible.
type Env struct {
	HasDOI            bool
	CanSample         bool
	CanElicit         bool
	LibraryConfigured bool
}

func (e Env) sampling() bool { return e.HasDOI && e.CanSample }

func (e Env) elicitation() bool { return e.HasDOI && e.LibraryConfigured && e.CanElicit }

// Result is how the step in the current state ended.
type Result int

const (
	// Succeeded: text was obtained (sampling or polling).
	Succeeded Result = iota
	// Failed: the step produced nothing; sampling falls through, polling
	// has exhausted its budget.
	Failed
	// Accepted: the user agreed to add the work.
	Accepted
	// Rejected: the user declined or cancelled.
	Rejected
	// Errored: the request itself failed.
	Errored
)

// Next returns the state that follows s given env and the result of the
// step just run. Start ignores r.
func Next(s State, env Env, r Result) State {
	switch s {
	case Start:
		if env.sampling() {
			return TrySampling
		}
		return afterSampling(env)
	case TrySampling:
		if r == Succeeded {
			return Found
		}
		return afterSampling(env)
	case TryElicitation:
		switch r {
		case Accepted:
			return Polling
		case Rejected:
			return Declined
		default:
			return Unavailable
		}
	case Polling:
		if r == Succeeded {
			return Found
		}
		return TimedOut
	default:
		return s
	}
}

func afterSampling(env Env) State {
	if env.elicitation() {
		return TryElicitation
	}
	return Unavailable
}
