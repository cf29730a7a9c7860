package secondary

// ResponseEvents defines the secondary port for response-phase observations of
// top-level navigations. Handlers may release their own subscription.
type ResponseEvents interface {
	// OnHeadersReceived observes response headers, including redirects.
	OnHeadersReceived(filter EventFilter, fn func(HeadersEvent)) Subscription

	// OnResponseStarted observes the first byte of a non-redirect response.
	OnResponseStarted(filter EventFilter, fn func(ResponseStartedEvent)) Subscription

	// OnErrorOccurred observes network failures.
	OnErrorOccurred(filter EventFilter, fn func(ErrorEvent)) Subscription
}

// Subscription releases one registered handler. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

// Unsubscribe calls f.
func (f SubscriptionFunc) Unsubscribe() { f() }

// EventFilter narrows a subscription. Empty fields match everything.
type EventFilter struct {
	TabID string
	URL   string // Exact request URL
}

// Matches reports whether an event for tabID and url passes the filter.
func (f EventFilter) Matches(tabID, url string) bool {
	if f.TabID != "" && f.TabID != tabID {
		return false
	}
	if f.URL != "" && f.URL != url {
		return false
	}
	return true
}

// HeadersEvent reports response headers for a top-level request.
type HeadersEvent struct {
	TabID      string
	RequestID  string
	URL        string
	StatusCode int
}

// ResponseStartedEvent reports that a top-level response body began loading.
type ResponseStartedEvent struct {
	TabID      string
	RequestID  string
	URL        string
	StatusCode int
}

// ErrorEvent reports a network failure for a top-level request.
type ErrorEvent struct {
	TabID     string
	RequestID string
	URL       string
	Error     string
}
