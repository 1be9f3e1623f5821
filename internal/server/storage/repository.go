package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tenderwatch/scanner/internal/database"
	"tenderwatch/scanner/internal/models"
)

// TenderRepository defines the read side of the triage API.
type TenderRepository interface {
	FetchTenders(ctx context.Context, q Query) ([]models.Tender, error)
}

// Query describes one page of the triage feed. Cursor fields are both nil or
// both set.
type Query struct {
	Limit       int
	Status      string // empty means all statuses
	Search      string // free-text match over items, department, keyword, bid id
	CursorTS    *time.Time
	CursorBidID *string
}

// sqlxRepository implements TenderRepository using sqlx.
type sqlxRepository struct {
	db *database.DB
}

// NewRepository creates a new repository instance.
func NewRepository(db *database.DB) TenderRepository {
	return &sqlxRepository{db: db}
}

// FetchTenders retrieves one page of tenders, newest first. Ordering by
// (discovered_at, bid_id) descending must stay consistent for cursor
// pagination to work.
func (r *sqlxRepository) FetchTenders(ctx context.Context, q Query) ([]models.Tender, error) {
	query := `SELECT * FROM tenders WHERE 1=1`
	var args []any

	if q.Status != "" {
		query += ` AND status = ?`
		args = append(args, q.Status)
	}

	if q.Search != "" {
		pattern := "%" + q.Search + "%"
		query += ` AND (items LIKE ? OR department LIKE ? OR matched_keyword LIKE ? OR bid_id LIKE ?)`
		args = append(args, pattern, pattern, pattern, pattern)
	}

	if q.CursorTS != nil && q.CursorBidID != nil {
		query += ` AND ((discovered_at < ?) OR (discovered_at = ? AND bid_id < ?))`
		args = append(args, q.CursorTS.UTC(), q.CursorTS.UTC(), *q.CursorBidID)
	}

	query += ` ORDER BY discovered_at DESC, bid_id DESC LIMIT ?`
	args = append(args, q.Limit)

	var tenders []models.Tender
	err := r.db.SelectContext(ctx, &tenders, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Tender{}, nil // Return empty slice, not error
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return tenders, nil
}
