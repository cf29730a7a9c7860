package chrome

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/autohttps/internal/core/tracking"
	"github.com/example/autohttps/internal/logging"
	"github.com/example/autohttps/internal/ports/primary"
	"github.com/example/autohttps/internal/ports/secondary"
)

// Engine is the part of the application a host drives.
type Engine interface {
	primary.UpgradeService
	primary.TabEvents
}

// Publisher receives response-phase events.
type Publisher interface {
	PublishHeaders(ev secondary.HeadersEvent)
	PublishResponseStarted(ev secondary.ResponseStartedEvent)
	PublishError(ev secondary.ErrorEvent)
}

// Interceptor answers one paused request.
type Interceptor interface {
	Redirect(ctx context.Context, id proto.FetchRequestID, location string) error
	Continue(ctx context.Context, id proto.FetchRequestID) error
}

// Host connects browser tabs to the engine. It is the engine's TabSource.
type Host struct {
	browser   *rod.Browser
	publisher Publisher
	logger    *logging.Logger
	now       func() time.Time

	mu    sync.Mutex
	pages map[string]*pageState
}

// NewHost creates a host for browser.
func NewHost(browser *rod.Browser, publisher Publisher, logger *logging.Logger) *Host {
	return &Host{
		browser:   browser,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		pages:     make(map[string]*pageState),
	}
}

// Query returns every known tab.
func (h *Host) Query(ctx context.Context) ([]secondary.TabInfo, error) {
	h.mu.Lock()
	pages := make([]*pageState, 0, len(h.pages))
	for _, p := range h.pages {
		pages = append(pages, p)
	}
	h.mu.Unlock()

	result := make([]secondary.TabInfo, 0, len(pages))
	for _, p := range pages {
		result = append(result, p.info())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Get returns one tab, or ErrTabNotFound before its target is reported.
func (h *Host) Get(ctx context.Context, tabID string) (*secondary.TabInfo, error) {
	h.mu.Lock()
	p, ok := h.pages[tabID]
	h.mu.Unlock()
	if !ok {
		return nil, secondary.ErrTabNotFound
	}
	info := p.info()
	return &info, nil
}

// Run attaches to every page, bootstraps engine and serves until ctx is done
// or the browser goes away.
func (h *Host) Run(ctx context.Context, engine Engine) error {
	g, gctx := errgroup.WithContext(ctx)
	browser := h.browser.Context(gctx)

	targets, err := proto.TargetGetTargets{}.Call(browser)
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}
	for _, info := range targets.TargetInfos {
		if info.Type == proto.TargetTargetInfoTypePage {
			h.attach(gctx, g, browser, engine, info)
		}
	}
	if err := engine.Bootstrap(gctx); err != nil {
		return fmt.Errorf("bootstrap tabs: %w", err)
	}

	wait := browser.EachEvent(
		func(e *proto.TargetTargetCreated) {
			if e.TargetInfo.Type != proto.TargetTargetInfoTypePage {
				return
			}
			if p := h.attach(gctx, g, browser, engine, e.TargetInfo); p != nil {
				// The protocol has no focus notification; a new page is
				// treated as activated when it appears.
				engine.TabCreated(primary.TabCreatedEvent{TabID: p.targetID, Active: true, At: h.now()})
			}
		},
		func(e *proto.TargetTargetInfoChanged) {
			if p := h.page(string(e.TargetInfo.TargetID)); p != nil {
				p.setURL(e.TargetInfo.URL)
			}
		},
		func(e *proto.TargetTargetDestroyed) {
			h.detach(engine, string(e.TargetID))
		},
	)
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(browser); err != nil {
		return fmt.Errorf("discover targets: %w", err)
	}

	g.Go(func() error {
		wait()
		return nil
	})

	h.logger.Info("attached to browser", zap.Int("tabs", len(targets.TargetInfos)))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (h *Host) page(targetID string) *pageState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pages[targetID]
}

// attach starts watching a page target. It returns nil for a target that is
// already attached.
func (h *Host) attach(ctx context.Context, g *errgroup.Group, browser *rod.Browser, engine Engine, info *proto.TargetTargetInfo) *pageState {
	id := string(info.TargetID)

	h.mu.Lock()
	if _, ok := h.pages[id]; ok {
		h.mu.Unlock()
		return nil
	}
	p := newPageState(id, info.URL)
	pctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	h.pages[id] = p
	h.mu.Unlock()

	g.Go(func() error {
		h.watchPage(pctx, browser, engine, p)
		return nil
	})
	return p
}

func (h *Host) detach(engine Engine, targetID string) {
	h.mu.Lock()
	p, ok := h.pages[targetID]
	delete(h.pages, targetID)
	h.mu.Unlock()
	if !ok {
		return
	}
	p.cancel()
	engine.TabRemoved(targetID)
}

// watchPage pumps one page's events until its context ends. Events for a
// page are handled on a single goroutine, in order.
func (h *Host) watchPage(ctx context.Context, browser *rod.Browser, engine Engine, p *pageState) {
	log := h.logger.With(zap.String("tab", p.targetID))

	page, err := browser.PageFromTarget(proto.TargetTargetID(p.targetID))
	if err != nil {
		log.Warn("failed to attach to page", zap.Error(err))
		return
	}
	page = page.Context(ctx)

	// Fetch must be enabled with our patterns before EachEvent would enable
	// it with none.
	err = proto.FetchEnable{Patterns: []*proto.FetchRequestPattern{{
		URLPattern:   "http://*",
		ResourceType: proto.NetworkResourceTypeDocument,
		RequestStage: proto.FetchRequestStageRequest,
	}}}.Call(page)
	if err != nil {
		log.Warn("failed to enable request interception", zap.Error(err))
		return
	}
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		log.Warn("failed to enable network events", zap.Error(err))
		return
	}
	if err := (proto.PageEnable{}).Call(page); err != nil {
		log.Warn("failed to enable page events", zap.Error(err))
		return
	}

	in := pageInterceptor{page: page}
	wait := page.EachEvent(
		func(e *proto.FetchRequestPaused) { h.onRequestPaused(ctx, engine, in, p, e) },
		func(e *proto.NetworkRequestWillBeSent) { h.onRequestWillBeSent(p, e) },
		func(e *proto.NetworkResponseReceived) { h.onResponseReceived(p, e) },
		func(e *proto.NetworkLoadingFinished) { p.forgetRequest(string(e.RequestID)) },
		func(e *proto.NetworkLoadingFailed) { h.onLoadingFailed(p, e) },
		func(e *proto.PageFrameStartedLoading) {
			if p.isTopLevel(e.FrameID) {
				p.setLoading(true)
			}
		},
		func(e *proto.PageFrameStoppedLoading) {
			if p.isTopLevel(e.FrameID) {
				p.setLoading(false)
			}
		},
	)
	wait()
}

// onRequestPaused decides an intercepted request.
func (h *Host) onRequestPaused(ctx context.Context, engine Engine, in Interceptor, p *pageState, e *proto.FetchRequestPaused) {
	if e.ResourceType != proto.NetworkResourceTypeDocument || !p.isTopLevel(e.FrameID) ||
		!strings.HasPrefix(strings.ToLower(e.Request.URL), "http:") {
		h.resume(ctx, in, e.RequestID)
		return
	}

	requestID := requestIDOf(e)
	origin := referrer(e.Request.Headers)
	if origin == "" {
		origin = p.initiatorOrigin(requestID)
	}

	decision := engine.Decide(ctx, primary.NavigationRequest{
		TabID:     p.targetID,
		URL:       fullURL(e.Request),
		RequestID: requestID,
		OriginURL: origin,
		Timestamp: h.now(),
	})
	if !decision.Upgrade {
		h.resume(ctx, in, e.RequestID)
		return
	}

	p.markSynthetic(requestID, e.Request.URL)
	if err := in.Redirect(ctx, e.RequestID, decision.NewURL); err != nil {
		h.logger.Warn("failed to redirect navigation", zap.String("tab", p.targetID), zap.Error(err))
		h.resume(ctx, in, e.RequestID)
	}
}

func (h *Host) resume(ctx context.Context, in Interceptor, id proto.FetchRequestID) {
	if err := in.Continue(ctx, id); err != nil && ctx.Err() == nil {
		h.logger.Debug("failed to continue request", zap.Error(err))
	}
}

// onRequestWillBeSent records top-level requests and reports redirects.
func (h *Host) onRequestWillBeSent(p *pageState, e *proto.NetworkRequestWillBeSent) {
	if e.Type != proto.NetworkResourceTypeDocument || !p.isTopLevel(e.FrameID) {
		return
	}
	id := string(e.RequestID)

	if e.RedirectResponse != nil {
		redirect := e.RedirectResponse
		if !p.takeSynthetic(id, redirect.URL) {
			h.publisher.PublishHeaders(secondary.HeadersEvent{
				TabID:      p.targetID,
				RequestID:  id,
				URL:        redirect.URL,
				StatusCode: redirect.Status,
			})
		}
	} else if e.Initiator != nil && e.Initiator.Type != proto.NetworkInitiatorTypeOther {
		// Link clicks, form posts and scripted navigations have a page behind them.
		p.setInitiatorOrigin(id, p.info().URL)
	}

	p.trackRequest(id, fullURL(e.Request))
}

// onResponseReceived reports a final top-level response.
func (h *Host) onResponseReceived(p *pageState, e *proto.NetworkResponseReceived) {
	if e.Type != proto.NetworkResourceTypeDocument || !p.isTopLevel(e.FrameID) || e.Response == nil {
		return
	}
	id := string(e.RequestID)

	// A redirect status here was not followed (e.g. a download); it still
	// counts as a redirect observation.
	h.publisher.PublishHeaders(secondary.HeadersEvent{
		TabID:      p.targetID,
		RequestID:  id,
		URL:        e.Response.URL,
		StatusCode: e.Response.Status,
	})
	if tracking.IsRedirectStatus(e.Response.Status) {
		return
	}
	h.publisher.PublishResponseStarted(secondary.ResponseStartedEvent{
		TabID:      p.targetID,
		RequestID:  id,
		URL:        e.Response.URL,
		StatusCode: e.Response.Status,
	})
}

// onLoadingFailed reports a network error for a tracked top-level request.
func (h *Host) onLoadingFailed(p *pageState, e *proto.NetworkLoadingFailed) {
	id := string(e.RequestID)
	url, ok := p.requestURL(id)
	if !ok {
		return
	}
	p.forgetRequest(id)
	h.publisher.PublishError(secondary.ErrorEvent{
		TabID:     p.targetID,
		RequestID: id,
		URL:       url,
		Error:     e.ErrorText,
	})
}

// pageInterceptor answers paused requests on a rod page.
type pageInterceptor struct {
	page *rod.Page
}

// Redirect answers the request with a temporary redirect to location.
func (in pageInterceptor) Redirect(ctx context.Context, id proto.FetchRequestID, location string) error {
	return proto.FetchFulfillRequest{
		RequestID:    id,
		ResponseCode: http.StatusTemporaryRedirect,
		ResponseHeaders: []*proto.FetchHeaderEntry{
			{Name: "Location", Value: location},
			{Name: "Non-Authoritative-Reason", Value: "autohttps"},
		},
		Body: []byte{},
	}.Call(in.page.Context(ctx))
}

// Continue lets the request proceed unmodified.
func (in pageInterceptor) Continue(ctx context.Context, id proto.FetchRequestID) error {
	return proto.FetchContinueRequest{RequestID: id}.Call(in.page.Context(ctx))
}

// Ensure Host implements the interface
var _ secondary.TabSource = (*Host)(nil)
