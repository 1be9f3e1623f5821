// Package store is the persistence layer for tender records. The pipeline
// only checks existence and appends; the triage API reads and flips status.
package store

import (
	"context"
	"fmt"

	"tenderwatch/scanner/internal/database"
	"tenderwatch/scanner/internal/models"
)

// TenderStore persists deduplicated tender records.
type TenderStore struct {
	db *database.DB
}

// New creates a TenderStore on top of an existing database connection.
func New(db *database.DB) *TenderStore {
	return &TenderStore{db: db}
}

// Exists reports whether a tender with the given bid id is already stored.
func (s *TenderStore) Exists(ctx context.Context, bidID string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(1) FROM tenders WHERE bid_id = ?", bidID)
	if err != nil {
		return false, fmt.Errorf("failed to check tender existence: %w", err)
	}
	return n > 0, nil
}

// InsertIfAbsent inserts the tender unless a row with the same bid id already
// exists, and reports whether an insert occurred. The write is
// conflict-ignoring, so it is safe to call even if Exists was checked moments
// earlier and another writer raced in between.
func (s *TenderStore) InsertIfAbsent(ctx context.Context, t *models.Tender) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tenders (bid_id, matched_keyword, items, department, start_date, end_date, link, status, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bid_id) DO NOTHING;`,
		t.BidID, t.MatchedKeyword, t.Items, t.Department,
		t.StartDate, t.EndDate, t.Link, t.Status, t.DiscoveredAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert tender %s: %w", t.BidID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for %s: %w", t.BidID, err)
	}
	return rowsAffected > 0, nil
}

// UpdateStatus overwrites the status field of an existing tender. Updating an
// absent bid id is a no-op.
func (s *TenderStore) UpdateStatus(ctx context.Context, bidID, newStatus string) error {
	if !models.ValidStatus(newStatus) {
		return fmt.Errorf("invalid tender status %q", newStatus)
	}
	_, err := s.db.ExecContext(ctx, "UPDATE tenders SET status = ? WHERE bid_id = ?", newStatus, bidID)
	if err != nil {
		return fmt.Errorf("failed to update status for %s: %w", bidID, err)
	}
	return nil
}
