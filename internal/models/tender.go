package models

import "time"

// Tender statuses. The pipeline only ever writes StatusNew; the other two
// are set by the triage API on user action.
const (
	StatusNew        = "New"
	StatusBookmarked = "Bookmarked"
	StatusIgnored    = "Ignored"
)

// ValidStatus reports whether s is one of the recognized tender statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusNew, StatusBookmarked, StatusIgnored:
		return true
	}
	return false
}

// Tender represents a row in the 'tenders' table. BidID is the external
// identifier from the listing site and the dedupe key: no two stored rows
// share a BidID.
type Tender struct {
	BidID          string    `db:"bid_id" json:"bid_id"`
	MatchedKeyword string    `db:"matched_keyword" json:"matched_keyword"`
	Items          string    `db:"items" json:"items"`
	Department     string    `db:"department" json:"department"`
	StartDate      string    `db:"start_date" json:"start_date"`
	EndDate        string    `db:"end_date" json:"end_date"`
	Link           string    `db:"link" json:"link"`
	Status         string    `db:"status" json:"status"`
	DiscoveredAt   time.Time `db:"discovered_at" json:"discovered_at"`
}

// NewTender creates a Tender with default values.
func NewTender() *Tender {
	return &Tender{
		Status:       StatusNew,
		DiscoveredAt: time.Now(),
	}
}
