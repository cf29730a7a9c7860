package chrome

import (
	"context"
	"strings"
	"sync"

	"github.com/go-rod/rod/lib/proto"

	"github.com/example/autohttps/internal/ports/secondary"
)

// pageState is the host's view of one tab. The page's event goroutine
// writes it; TabSource lookups read it.
type pageState struct {
	targetID string
	cancel   context.CancelFunc

	mu        sync.Mutex
	url       string
	loading   bool
	requests  map[string]string // Top-level network request id to its current URL
	synthetic map[string]string // Request id to the plaintext URL answered with our own 307
	origins   map[string]string // Request id to the page that initiated it
}

func newPageState(targetID, url string) *pageState {
	return &pageState{
		targetID:  targetID,
		url:       url,
		requests:  make(map[string]string),
		synthetic: make(map[string]string),
		origins:   make(map[string]string),
	}
}

func (p *pageState) info() secondary.TabInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := secondary.TabStatusComplete
	if p.loading {
		status = secondary.TabStatusLoading
	}
	return secondary.TabInfo{ID: p.targetID, URL: p.url, Status: status}
}

func (p *pageState) setURL(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
}

func (p *pageState) setLoading(loading bool) {
	p.mu.Lock()
	p.loading = loading
	p.mu.Unlock()
}

func (p *pageState) trackRequest(id, url string) {
	p.mu.Lock()
	p.requests[id] = url
	p.mu.Unlock()
}

func (p *pageState) requestURL(id string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	url, ok := p.requests[id]
	return url, ok
}

func (p *pageState) forgetRequest(id string) {
	p.mu.Lock()
	delete(p.requests, id)
	delete(p.synthetic, id)
	delete(p.origins, id)
	p.mu.Unlock()
}

func (p *pageState) setInitiatorOrigin(id, url string) {
	p.mu.Lock()
	p.origins[id] = url
	p.mu.Unlock()
}

func (p *pageState) initiatorOrigin(id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.origins[id]
}

func (p *pageState) markSynthetic(id, plaintextURL string) {
	p.mu.Lock()
	p.synthetic[id] = plaintextURL
	p.mu.Unlock()
}

// takeSynthetic reports whether a redirect response for id from url is the
// one we fabricated, consuming the mark.
func (p *pageState) takeSynthetic(id, url string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.synthetic[id] != url {
		return false
	}
	delete(p.synthetic, id)
	return true
}

// isTopLevel reports whether frameID is the main frame of the page. For page
// targets the main frame id equals the target id.
func (p *pageState) isTopLevel(frameID proto.PageFrameID) bool {
	return string(frameID) == p.targetID
}

// fullURL rejoins the fragment the protocol reports separately.
func fullURL(req *proto.NetworkRequest) string {
	return req.URL + req.URLFragment
}

// referrer returns the request's Referer header, if any.
func referrer(headers proto.NetworkHeaders) string {
	for name, value := range headers {
		if strings.EqualFold(name, "Referer") {
			return value.Str()
		}
	}
	return ""
}

// requestIDOf prefers the network id, which stays stable across redirects.
func requestIDOf(e *proto.FetchRequestPaused) string {
	if e.NetworkID != "" {
		return string(e.NetworkID)
	}
	return string(e.RequestID)
}
