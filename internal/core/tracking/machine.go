// Package tracking contains the pure transition rules for per-tab redirect tracking.
// This is part of the Functional Core - no I/O, only pure functions.
package tracking

import "net/http"

// State is the lifecycle state of one tab's redirect tracker.
type State string

const (
	StateIdle             State = "idle"              // No upgrade outstanding
	StateArmed            State = "armed"             // Upgrade issued, awaiting response
	StateRedirectObserved State = "redirect_observed" // Server answered the upgrade with a redirect
	StateSettled          State = "settled"           // Terminal; tracker is being removed
)

// EventKind identifies the observation delivered to a tracker.
type EventKind string

const (
	EventHeadersReceived EventKind = "headers_received"
	EventResponseStarted EventKind = "response_started"
	EventErrorOccurred   EventKind = "error_occurred"
	EventTabRemoved      EventKind = "tab_removed"
	EventSuperseded      EventKind = "superseded"
)

// Event is an observation relevant to a tracker.
type Event struct {
	Kind       EventKind
	StatusCode int    // EventHeadersReceived only
	RequestID  string // Request the observation belongs to
}

// Transition is the outcome of applying an event to a state.
type Transition struct {
	Next State
	// RecordRequestID is set when the event's request id must be remembered
	// as the continuation of a redirect.
	RecordRequestID bool
}

// IsRedirectStatus reports whether code is a standard HTTP redirect status.
func IsRedirectStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	}
	return false
}

// IsLive reports whether a tracker in state s still owns subscriptions.
func IsLive(s State) bool {
	return s == StateArmed || s == StateRedirectObserved
}

// Next applies event e to state s.
// Idle and Settled trackers ignore every event.
func Next(s State, e Event) Transition {
	if !IsLive(s) {
		return Transition{Next: s}
	}

	switch e.Kind {
	case EventHeadersReceived:
		if IsRedirectStatus(e.StatusCode) {
			return Transition{Next: StateRedirectObserved, RecordRequestID: true}
		}
		return Transition{Next: StateSettled}
	case EventResponseStarted, EventErrorOccurred, EventTabRemoved, EventSuperseded:
		return Transition{Next: StateSettled}
	}
	return Transition{Next: s}
}
