// Package upgrade contains the pure business logic for HTTPS upgrade decisions.
// This is part of the Functional Core - no I/O, only pure functions.
package upgrade

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/example/autohttps/internal/core/suppress"
)

// Timing windows for blank-tab heuristics.
const (
	// RestoredSessionWindow is how recently a tab may have been activated
	// before a navigation out of a blank page is treated as a session restore.
	RestoredSessionWindow = time.Second

	// FreshTabWindow is how recently a tab may have been created before a
	// navigation out of a blank page is treated as externally opened.
	FreshTabWindow = 300 * time.Millisecond
)

// Reason codes carried by GuardResult when an upgrade is refused.
const (
	ReasonOriginURL        = "origin-url"
	ReasonNoTab            = "no-tab"
	ReasonUnparsableURL    = "unparsable-url"
	ReasonNotHTTP          = "not-http"
	ReasonNoTLD            = "no-tld"
	ReasonReservedTLD      = "reserved-tld"
	ReasonIPLiteral        = "ip-literal"
	ReasonSuppressed       = "suppressed"
	ReasonUntrackedTab     = "untracked-tab"
	ReasonRestoredSession  = "restored-session"
	ReasonFreshTab         = "fresh-tab"
	ReasonDerivedURL       = "derived-url"
	ReasonRetriedRedirect  = "retried-redirect"
	ReasonForcedPlaintext  = "forced-plaintext"
	ReasonUpgraded         = "upgraded"
	ReasonPreferenceFailed = "preferences-unavailable"
)

// reservedSuffixes are the RFC 2606 / RFC 6761 names that can never carry a
// publicly trusted certificate.
var reservedSuffixes = []string{".test", ".example", ".invalid", ".localhost"}

var ipv4Pattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

// placeholderURLs are the empty pages a freshly opened tab shows.
var placeholderURLs = map[string]bool{
	"about:blank":      true,
	"about:newtab":     true,
	"about:home":       true,
	"chrome://newtab/": true,
}

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string // Reason code (populated when not allowed)
}

func allow() GuardResult { return GuardResult{Allowed: true} }

func deny(reason string) GuardResult { return GuardResult{Allowed: false, Reason: reason} }

// NavigationContext describes where an intercepted navigation came from.
type NavigationContext struct {
	OriginURL string // URL of the page that triggered the navigation, if any
	TabID     string // Empty when the navigation has no visible tab
}

// CanUpgradeNavigation evaluates the request-level pre-filters.
// Rule: only originless navigations in a visible tab are address-bar candidates.
func CanUpgradeNavigation(ctx NavigationContext) GuardResult {
	if ctx.OriginURL != "" {
		return deny(ReasonOriginURL)
	}
	if ctx.TabID == "" {
		return deny(ReasonNoTab)
	}
	return allow()
}

// ShouldRedirectToHTTPS evaluates whether the requested URL's host can
// plausibly be served over HTTPS and is not suppressed by the user.
func ShouldRedirectToHTTPS(rawURL string, trie *suppress.Trie) GuardResult {
	u, err := url.Parse(rawURL)
	if err != nil {
		return deny(ReasonUnparsableURL)
	}
	if !strings.EqualFold(u.Scheme, "http") {
		return deny(ReasonNotHTTP)
	}
	if strings.HasPrefix(u.Host, "[") {
		return deny(ReasonIPLiteral)
	}

	host := u.Hostname()
	if !strings.Contains(host, ".") {
		return deny(ReasonNoTLD)
	}
	for _, suffix := range reservedSuffixes {
		if strings.HasSuffix(host, suffix) {
			return deny(ReasonReservedTLD)
		}
	}
	if ipv4Pattern.MatchString(host) {
		return deny(ReasonIPLiteral)
	}
	if trie.IsExcluded(host) {
		return deny(ReasonSuppressed)
	}
	return allow()
}

// IsPlaceholderURL reports whether a tab URL is an empty placeholder page.
func IsPlaceholderURL(tabURL string) bool {
	return placeholderURLs[tabURL]
}

// BlankTabContext provides the timing facts for a tab sitting on a placeholder page.
// Populated by the caller from the tab timing ledger.
type BlankTabContext struct {
	HasRecord       bool
	CreatedAt       time.Time
	LastActivatedAt time.Time // Zero when no activation is known
	Now             time.Time
}

// CanUpgradeBlankTab evaluates whether a navigation out of a placeholder page
// looks typed by the user.
// Rule: an activation that lands inside the fresh-tab window belongs to the
// tab's creation; only a later activation counts as a session restore.
func CanUpgradeBlankTab(ctx BlankTabContext) GuardResult {
	if !ctx.HasRecord {
		return deny(ReasonUntrackedTab)
	}
	activated := ctx.LastActivatedAt
	if !activated.IsZero() && activated.Sub(ctx.CreatedAt) >= FreshTabWindow &&
		ctx.Now.Sub(activated) < RestoredSessionWindow {
		return deny(ReasonRestoredSession)
	}
	if ctx.Now.Sub(ctx.CreatedAt) < FreshTabWindow {
		return deny(ReasonFreshTab)
	}
	return allow()
}

// PendingContext provides the tracked redirect state for a tab.
type PendingContext struct {
	HasPending       bool
	TrackedURL       string // Upgraded URL recorded when the tracker was armed
	RetriedRequestID string // Continuation id recorded on a redirect, if any
	RequestID        string
	UpgradedURL      string // The incoming request's URL after upgrading
	TabLoading       bool
}

// CanUpgradeWithPending evaluates an incoming request against an outstanding upgrade.
// Rule: never upgrade the server's follow-up to our own upgrade, and respect a
// user retyping the same address while the upgrade is still loading.
func CanUpgradeWithPending(ctx PendingContext) GuardResult {
	if !ctx.HasPending {
		return allow()
	}
	if ctx.RetriedRequestID != "" && ctx.RequestID == ctx.RetriedRequestID {
		return deny(ReasonRetriedRedirect)
	}
	if ctx.TrackedURL == ctx.UpgradedURL && ctx.TabLoading {
		return deny(ReasonForcedPlaintext)
	}
	return allow()
}

// UpgradeURL rewrites the http: scheme to https:, keeping the rest verbatim.
func UpgradeURL(rawURL string) string {
	if len(rawURL) >= len("http:") && strings.EqualFold(rawURL[:len("http:")], "http:") {
		return "https:" + rawURL[len("http:"):]
	}
	return rawURL
}
