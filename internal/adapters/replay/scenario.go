// Package replay drives the engine from a scripted YAML scenario under a
// virtual clock. It plays the browser: it owns the tabs, publishes response
// events and reports each decision against the scenario's expectations.
package replay

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted browsing session.
type Scenario struct {
	Name        string        `yaml:"name"`
	Start       time.Time     `yaml:"start"`
	Preferences Preferences   `yaml:"preferences"`
	Tabs        []TabSpec     `yaml:"tabs"` // Open before the engine starts
	Steps       []Step        `yaml:"steps"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Preferences seeds or replaces the stored preferences.
type Preferences struct {
	SuppressedDomains []string `yaml:"suppressed_domains"`
	LoggingEnabled    bool     `yaml:"logging_enabled"`
}

// TabSpec describes one tab.
type TabSpec struct {
	ID      string `yaml:"id"`
	URL     string `yaml:"url"`
	Active  bool   `yaml:"active"`
	Loading bool   `yaml:"loading"`
	// Hidden tabs are not returned by lookups until Reveal; they model a
	// tab the host has not finished creating.
	Hidden bool `yaml:"hidden"`
}

// Step is one timed action. Exactly one action field is set.
type Step struct {
	At time.Duration `yaml:"at"` // Offset from Start

	TabCreated      *TabSpec         `yaml:"tab_created"`
	TabActivated    *TabRef          `yaml:"tab_activated"`
	TabUpdated      *TabSpec         `yaml:"tab_updated"`
	TabRemoved      *TabRef          `yaml:"tab_removed"`
	Reveal          *TabRef          `yaml:"reveal"`
	Navigate        *Navigation      `yaml:"navigate"`
	Headers         *ResponseSpec    `yaml:"headers"`
	ResponseStarted *ResponseSpec    `yaml:"response_started"`
	Error           *ErrorSpec       `yaml:"error"`
	SetPreferences  *Preferences     `yaml:"set_preferences"`
	Expect          *Expectation     `yaml:"expect"`
	ExpectTracking  *TrackingPresent `yaml:"expect_tracking"`
}

// TabRef names a tab.
type TabRef struct {
	ID string `yaml:"id"`
}

// Navigation is an intercepted top-level request.
type Navigation struct {
	Tab     string `yaml:"tab"`
	URL     string `yaml:"url"`
	Request string `yaml:"request"` // Generated when empty
	Origin  string `yaml:"origin"`
}

// ResponseSpec is a response-phase observation.
type ResponseSpec struct {
	Tab     string `yaml:"tab"`
	Request string `yaml:"request"`
	URL     string `yaml:"url"`
	Status  int    `yaml:"status"`
}

// ErrorSpec is a network failure.
type ErrorSpec struct {
	Tab     string `yaml:"tab"`
	Request string `yaml:"request"`
	URL     string `yaml:"url"`
	Error   string `yaml:"error"`
}

// Expectation checks the decision made by the step's navigation.
type Expectation struct {
	Upgrade bool   `yaml:"upgrade"`
	URL     string `yaml:"url"`
	Reason  string `yaml:"reason"`
}

// TrackingPresent checks whether a tab has an outstanding upgrade.
type TrackingPresent struct {
	Tab     string `yaml:"tab"`
	Present bool   `yaml:"present"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	sc := &Scenario{}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Validate checks that steps are ordered and each carries one action.
func (sc *Scenario) Validate() error {
	if sc.Start.IsZero() {
		sc.Start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	var prev time.Duration
	for i, step := range sc.Steps {
		if step.At < prev {
			return fmt.Errorf("step %d: at %s is earlier than the previous step", i+1, step.At)
		}
		prev = step.At

		n := step.actionCount()
		if n != 1 && !(n == 0 && step.ExpectTracking != nil) {
			return fmt.Errorf("step %d: expected exactly one action, found %d", i+1, n)
		}
		if step.Expect != nil && step.Navigate == nil {
			return fmt.Errorf("step %d: expect requires navigate", i+1)
		}
	}
	return nil
}

func (s Step) actionCount() int {
	n := 0
	for _, set := range []bool{
		s.TabCreated != nil, s.TabActivated != nil, s.TabUpdated != nil, s.TabRemoved != nil,
		s.Reveal != nil, s.Navigate != nil, s.Headers != nil, s.ResponseStarted != nil,
		s.Error != nil, s.SetPreferences != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// Kind names the step's action for reports.
func (s Step) Kind() string {
	switch {
	case s.TabCreated != nil:
		return "tab_created"
	case s.TabActivated != nil:
		return "tab_activated"
	case s.TabUpdated != nil:
		return "tab_updated"
	case s.TabRemoved != nil:
		return "tab_removed"
	case s.Reveal != nil:
		return "reveal"
	case s.Navigate != nil:
		return "navigate"
	case s.Headers != nil:
		return "headers"
	case s.ResponseStarted != nil:
		return "response_started"
	case s.Error != nil:
		return "error"
	case s.SetPreferences != nil:
		return "set_preferences"
	}
	return "expect_tracking"
}
