// Package primary defines the primary ports (driving adapters) for the application.
// Hosts call these interfaces to feed browser events into the engine.
package primary

import (
	"context"
	"time"
)

// UpgradeService defines the primary port for navigation upgrade decisions.
type UpgradeService interface {
	// Decide runs the decision engine for one intercepted plaintext-HTTP
	// top-level navigation. It never fails: any internal problem yields a
	// pass-through decision.
	Decide(ctx context.Context, req NavigationRequest) Decision
}

// TabEvents defines the primary port for tab lifecycle notifications.
type TabEvents interface {
	// Bootstrap records every currently open tab.
	Bootstrap(ctx context.Context) error

	// TabCreated records a new tab.
	TabCreated(ev TabCreatedEvent)

	// TabActivated records that a tab became the active one.
	TabActivated(tabID string, at time.Time)

	// TabRemoved forgets a tab and settles its outstanding upgrade.
	TabRemoved(tabID string)
}

// NavigationRequest describes an intercepted navigation before it is sent.
type NavigationRequest struct {
	TabID     string // Empty when the navigation has no visible tab
	URL       string
	RequestID string
	OriginURL string // URL of the triggering page, empty for address-bar navigations
	Timestamp time.Time
}

// Decision is the engine's answer for one navigation.
type Decision struct {
	Upgrade bool
	NewURL  string // Set only when Upgrade is true
	Reason  string
}

// TabCreatedEvent contains parameters for a tab creation notification.
type TabCreatedEvent struct {
	TabID        string
	Active       bool
	LastAccessed time.Time // Optional
	At           time.Time // Observation time; zero means now
}
