// Package scan runs the scan-extract-dedupe-notify pipeline: one browser
// session per cycle, one search per keyword, each rendered card parsed,
// checked against the store and announced at most once.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tenderwatch/scanner/internal/extract"
	"tenderwatch/scanner/internal/models"
	"tenderwatch/scanner/internal/notify"
	"tenderwatch/scanner/internal/store"
)

// politeDelay spaces keyword submissions to avoid overloading the source.
const politeDelay = 2 * time.Second

// SessionFactory yields a fresh session for each cycle.
type SessionFactory func() Session

// Runner executes scan cycles over a fixed keyword list.
type Runner struct {
	store       *store.TenderStore
	extractor   *extract.Extractor
	notifier    *notify.Notifier
	newSession  SessionFactory
	keywords    []string
	politeDelay time.Duration
}

// NewRunner wires the pipeline components together.
func NewRunner(st *store.TenderStore, ex *extract.Extractor, nt *notify.Notifier, factory SessionFactory, keywords []string) (*Runner, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("at least one keyword is required")
	}
	return &Runner{
		store:       st,
		extractor:   ex,
		notifier:    nt,
		newSession:  factory,
		keywords:    keywords,
		politeDelay: politeDelay,
	}, nil
}

// CycleStats summarizes one completed cycle.
type CycleStats struct {
	NewTenders     int
	Duplicates     int
	SkippedCards   int
	FailedKeywords int
}

// RunCycle opens one browser session and drives it through every configured
// keyword in order. A keyword whose search fails is skipped; the session is
// always closed, whatever path the cycle exits on.
func (r *Runner) RunCycle(ctx context.Context) (CycleStats, error) {
	var stats CycleStats

	session := r.newSession()
	if err := session.Open(ctx); err != nil {
		return stats, fmt.Errorf("failed to open scan session: %w", err)
	}
	defer session.Close()

	for i, keyword := range r.keywords {
		if i > 0 {
			select {
			case <-time.After(r.politeDelay):
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}

		log.Info().Str("keyword", keyword).Msg("Searching listing")

		cards, err := session.Search(ctx, keyword)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.FailedKeywords++
			log.Warn().Err(err).Str("keyword", keyword).Msg("Search failed, skipping keyword")
			continue
		}

		log.Debug().Str("keyword", keyword).Int("cards", len(cards)).Msg("Result cards rendered")

		for _, card := range cards {
			r.processCard(ctx, card, keyword, &stats)
		}
	}

	log.Info().
		Int("new_tenders", stats.NewTenders).
		Int("duplicates", stats.Duplicates).
		Int("skipped_cards", stats.SkippedCards).
		Int("failed_keywords", stats.FailedKeywords).
		Msg("Scan cycle finished")

	return stats, nil
}

// processCard takes one card through extract, dedupe, store and notify. Any
// per-card failure is absorbed here so siblings keep flowing.
func (r *Runner) processCard(ctx context.Context, card extract.Card, keyword string, stats *CycleStats) {
	tender, err := r.extractor.Parse(card, keyword)
	if err != nil {
		stats.SkippedCards++
		if errors.Is(err, extract.ErrNoBidID) {
			log.Debug().Str("keyword", keyword).Msg("Card has no usable bid id, skipping")
		} else {
			log.Warn().Err(err).Str("keyword", keyword).Msg("Card parse failed, skipping")
		}
		return
	}

	exists, err := r.store.Exists(ctx, tender.BidID)
	if err != nil {
		log.Error().Err(err).Str("bid_id", tender.BidID).Msg("Existence check failed, skipping card")
		return
	}
	if exists {
		stats.Duplicates++
		return
	}

	inserted, err := r.store.InsertIfAbsent(ctx, tender)
	if err != nil {
		log.Error().Err(err).Str("bid_id", tender.BidID).Msg("Failed to store tender")
		return
	}
	if !inserted {
		// Another writer won the race between the existence check and the
		// insert. The record is stored; do not announce it again.
		stats.Duplicates++
		log.Debug().Str("bid_id", tender.BidID).Msg("Duplicate bid id detected on insert")
		return
	}

	stats.NewTenders++
	log.Info().
		Str("bid_id", tender.BidID).
		Str("keyword", keyword).
		Str("items", tender.Items).
		Msg("New tender stored")

	r.announce(ctx, tender)
}

// announce fires the at-most-once notification attempt. Delivery failure is
// logged and swallowed; the record is already persisted.
func (r *Runner) announce(ctx context.Context, tender *models.Tender) {
	if r.notifier == nil || !r.notifier.Configured() {
		log.Debug().Str("bid_id", tender.BidID).Msg("No webhook configured, skipping alert")
		return
	}
	if err := r.notifier.Notify(ctx, tender); err != nil {
		log.Error().Err(err).Str("bid_id", tender.BidID).Msg("Failed to deliver alert")
		return
	}
	log.Info().Str("bid_id", tender.BidID).Msg("Alert delivered")
}
