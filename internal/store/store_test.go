package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenderwatch/scanner/internal/database"
	"tenderwatch/scanner/internal/models"
	"tenderwatch/scanner/internal/store"
)

func newTestStore(t *testing.T) *store.TenderStore {
	t.Helper()

	dbCfg := database.NewConfig(filepath.Join(t.TempDir(), "tenders.db"))
	db, err := database.NewDB(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return store.New(db)
}

func sampleTender(bidID string) *models.Tender {
	tender := models.NewTender()
	tender.BidID = bidID
	tender.MatchedKeyword = "blinds"
	tender.Items = "Roller Blinds"
	tender.Department = "Ministry of Example"
	tender.StartDate = "01-01-2025"
	tender.EndDate = "15-01-2025"
	tender.Link = "https://bidplus.gem.gov.in/showbidDocument/123"
	return tender
}

func TestInsertIfAbsentDedupes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inserted, err := s.InsertIfAbsent(ctx, sampleTender("GEM/2025/B/1"))
	require.NoError(t, err)
	assert.True(t, inserted)

	// Second insert with the same bid id is a conflict-ignoring no-op.
	again := sampleTender("GEM/2025/B/1")
	again.MatchedKeyword = "curtains"
	inserted, err = s.InsertIfAbsent(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)

	exists, err := s.Exists(ctx, "GEM/2025/B/1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestExistsUnknownBidID(t *testing.T) {
	s := newTestStore(t)

	exists, err := s.Exists(context.Background(), "GEM/2025/B/404")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdateStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertIfAbsent(ctx, sampleTender("GEM/2025/B/2"))
	require.NoError(t, err)

	require.NoError(t, s.UpdateStatus(ctx, "GEM/2025/B/2", models.StatusBookmarked))
	require.NoError(t, s.UpdateStatus(ctx, "GEM/2025/B/2", models.StatusIgnored))
	require.NoError(t, s.UpdateStatus(ctx, "GEM/2025/B/2", models.StatusNew))

	// Updating an absent bid id is a no-op, not an error.
	require.NoError(t, s.UpdateStatus(ctx, "GEM/2025/B/404", models.StatusBookmarked))
}

func TestUpdateStatusRejectsInvalid(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateStatus(context.Background(), "GEM/2025/B/2", "Expired")
	assert.Error(t, err)
}
