package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rs/zerolog/log"

	"tenderwatch/scanner/internal/extract"
)

// Selectors observed on the listing page.
const (
	cardContainerSelector = ".card-body"
	searchInputSelector   = `input[type="search"]`
)

// webdriverOverride hides the automation flag the site checks for. Injected
// before any page script runs.
const webdriverOverride = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// cardSnapshotJS captures every currently-rendered result card: its full
// visible text plus the bid document anchor, when one exists.
const cardSnapshotJS = `
Array.from(document.querySelectorAll('.card')).map((card) => {
	const a = card.querySelector("a[href*='/showbidDocument']");
	return {
		text: card.innerText || '',
		anchorHref: a ? a.getAttribute('href') : '',
		anchorText: a ? a.innerText : '',
	};
})`

// SessionConfig controls one browser automation session.
type SessionConfig struct {
	ListingURL string
	UserAgent  string
	Headless   bool

	NavigationTimeout time.Duration // full page load, generous for slow servers
	ContainerTimeout  time.Duration // wait for the result container
	SearchTimeout     time.Duration // wait for the search field
	SettleDelay       time.Duration // client-side re-render after submit
}

// DefaultSessionConfig returns the timeouts and posture tuned against the
// live listing site.
func DefaultSessionConfig(listingURL string) SessionConfig {
	return SessionConfig{
		ListingURL:        listingURL,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Headless:          true,
		NavigationTimeout: 60 * time.Second,
		ContainerTimeout:  20 * time.Second,
		SearchTimeout:     5 * time.Second,
		SettleDelay:       4 * time.Second,
	}
}

// Session is one scan cycle's view of the listing site: open once, search per
// keyword, close unconditionally.
type Session interface {
	// Open launches the browser, navigates to the listing and waits for the
	// result container. Failure is fatal for the cycle.
	Open(ctx context.Context) error

	// Search submits one keyword and returns the currently-rendered result
	// cards. Failure affects only that keyword.
	Search(ctx context.Context, keyword string) ([]extract.Card, error)

	// Close tears the browser down. Safe to call after a failed Open.
	Close()
}

// BrowserSession drives a headless Chrome via chromedp. The target actively
// blocks default-configured automation clients, so the launch flags, user
// agent, viewport and navigator.webdriver override together present a
// realistic browser fingerprint.
type BrowserSession struct {
	cfg SessionConfig

	taskCtx     context.Context
	taskCancel  context.CancelFunc
	allocCancel context.CancelFunc
}

// NewBrowserSession creates an unopened browser session.
func NewBrowserSession(cfg SessionConfig) *BrowserSession {
	return &BrowserSession{cfg: cfg}
}

// Open launches Chrome with the evasion posture, navigates to the listing URL
// and waits for the primary result container to appear.
func (s *BrowserSession) Open(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.UserAgent(s.cfg.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	s.taskCtx = taskCtx
	s.taskCancel = taskCancel
	s.allocCancel = allocCancel

	log.Info().Str("url", s.cfg.ListingURL).Msg("Navigating to listing page")

	navCtx, cancel := context.WithTimeout(taskCtx, s.cfg.NavigationTimeout)
	defer cancel()
	err := chromedp.Run(navCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(webdriverOverride).Do(ctx)
			return err
		}),
		chromedp.Navigate(s.cfg.ListingURL),
	)
	if err != nil {
		s.Close()
		return fmt.Errorf("failed to navigate to %s: %w", s.cfg.ListingURL, err)
	}

	waitCtx, cancel := context.WithTimeout(taskCtx, s.cfg.ContainerTimeout)
	defer cancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(cardContainerSelector, chromedp.ByQuery)); err != nil {
		s.Close()
		return fmt.Errorf("result container did not appear: %w", err)
	}

	return nil
}

// Search clears the search field, types the keyword, submits, waits a fixed
// settle delay for the client-side re-render and snapshots the result cards.
func (s *BrowserSession) Search(ctx context.Context, keyword string) ([]extract.Card, error) {
	searchCtx, cancel := context.WithTimeout(s.taskCtx, s.cfg.SearchTimeout)
	defer cancel()
	err := chromedp.Run(searchCtx,
		chromedp.WaitVisible(searchInputSelector, chromedp.ByQuery),
		chromedp.SetValue(searchInputSelector, "", chromedp.ByQuery),
		chromedp.SendKeys(searchInputSelector, keyword+kb.Enter, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("search field unavailable for %q: %w", keyword, err)
	}

	// The listing re-renders in place with no reliable completion marker, so
	// a fixed settle delay is the only option. Known flakiness risk.
	select {
	case <-time.After(s.cfg.SettleDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.taskCtx.Done():
		return nil, s.taskCtx.Err()
	}

	var cards []extract.Card
	evalCtx, cancel := context.WithTimeout(s.taskCtx, s.cfg.ContainerTimeout)
	defer cancel()
	if err := chromedp.Run(evalCtx, chromedp.Evaluate(cardSnapshotJS, &cards)); err != nil {
		return nil, fmt.Errorf("failed to enumerate result cards for %q: %w", keyword, err)
	}
	return cards, nil
}

// Close releases the browser and allocator. Idempotent.
func (s *BrowserSession) Close() {
	if s.taskCancel != nil {
		s.taskCancel()
		s.taskCancel = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
	}
}
