package scan

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenderwatch/scanner/internal/database"
	"tenderwatch/scanner/internal/extract"
	"tenderwatch/scanner/internal/notify"
	"tenderwatch/scanner/internal/store"
)

const (
	testBaseOrigin = "https://bidplus.gem.gov.in"
	testListingURL = testBaseOrigin + "/all-bids"
)

// fakeSession replays canned search results without a browser.
type fakeSession struct {
	openErr   error
	results   map[string][]extract.Card
	searchErr map[string]error
	searched  []string
	closed    bool
}

func (f *fakeSession) Open(ctx context.Context) error { return f.openErr }

func (f *fakeSession) Search(ctx context.Context, keyword string) ([]extract.Card, error) {
	f.searched = append(f.searched, keyword)
	if err := f.searchErr[keyword]; err != nil {
		return nil, err
	}
	return f.results[keyword], nil
}

func (f *fakeSession) Close() { f.closed = true }

func newTestStore(t *testing.T) *store.TenderStore {
	t.Helper()

	dbCfg := database.NewConfig(filepath.Join(t.TempDir(), "tenders.db"))
	db, err := database.NewDB(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return store.New(db)
}

// countingWebhook returns a notifier pointed at a local endpoint plus the
// number of deliveries it received.
func countingWebhook(t *testing.T) (*notify.Notifier, *atomic.Int64) {
	t.Helper()

	var count atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	return notify.New(srv.URL), &count
}

func newTestRunner(t *testing.T, st *store.TenderStore, nt *notify.Notifier, session Session, keywords []string) *Runner {
	t.Helper()

	runner, err := NewRunner(
		st,
		extract.New(testBaseOrigin, testListingURL),
		nt,
		func() Session { return session },
		keywords,
	)
	require.NoError(t, err)
	runner.politeDelay = 0
	return runner
}

func chairCard() extract.Card {
	return extract.Card{
		Text: "Items: Office Chairs Quantity: 10\n" +
			"Start Date: 01-01-2025 End Date: 15-01-2025\n" +
			"Department Name And Address:\nX\nMinistry of Example",
		AnchorHref: "/showbidDocument/123",
		AnchorText: "GEM/2025/B/1",
	}
}

func TestRunCycleStoresAndNotifiesOnce(t *testing.T) {
	st := newTestStore(t)
	nt, deliveries := countingWebhook(t)
	session := &fakeSession{results: map[string][]extract.Card{"chairs": {chairCard()}}}

	runner := newTestRunner(t, st, nt, session, []string{"chairs"})
	ctx := context.Background()

	stats, err := runner.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NewTenders)
	assert.True(t, session.closed)

	// Second pass over the exact same card: no new row, no new alert.
	stats, err = runner.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.NewTenders)
	assert.Equal(t, 1, stats.Duplicates)

	exists, err := st.Exists(ctx, "GEM/2025/B/1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int64(1), deliveries.Load())
}

func TestRunCycleSkipsUnparseableCards(t *testing.T) {
	st := newTestStore(t)
	nt, deliveries := countingWebhook(t)
	session := &fakeSession{results: map[string][]extract.Card{
		"chairs": {
			{Text: "no anchor, no id-prefixed line"},
			chairCard(),
		},
	}}

	runner := newTestRunner(t, st, nt, session, []string{"chairs"})

	stats, err := runner.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NewTenders)
	assert.Equal(t, 1, stats.SkippedCards)
	assert.Equal(t, int64(1), deliveries.Load())
}

func TestRunCycleKeywordFailureDoesNotAbortCycle(t *testing.T) {
	st := newTestStore(t)
	nt, deliveries := countingWebhook(t)
	session := &fakeSession{
		results:   map[string][]extract.Card{"chairs": {chairCard()}},
		searchErr: map[string]error{"blinds": errors.New("search field unavailable")},
	}

	runner := newTestRunner(t, st, nt, session, []string{"blinds", "chairs"})

	stats, err := runner.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"blinds", "chairs"}, session.searched)
	assert.Equal(t, 1, stats.FailedKeywords)
	assert.Equal(t, 1, stats.NewTenders)
	assert.Equal(t, int64(1), deliveries.Load())
}

func TestRunCycleOpenFailureIsCycleFatal(t *testing.T) {
	st := newTestStore(t)
	nt, deliveries := countingWebhook(t)
	session := &fakeSession{openErr: errors.New("navigation timeout")}

	runner := newTestRunner(t, st, nt, session, []string{"chairs"})

	_, err := runner.RunCycle(context.Background())
	require.Error(t, err)
	assert.Empty(t, session.searched)
	assert.Equal(t, int64(0), deliveries.Load())
}

func TestRunCycleNotificationFailureDoesNotAbort(t *testing.T) {
	st := newTestStore(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	session := &fakeSession{results: map[string][]extract.Card{"chairs": {chairCard()}}}
	runner := newTestRunner(t, st, notify.New(srv.URL), session, []string{"chairs"})

	stats, err := runner.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NewTenders)

	// The record is persisted even though delivery failed.
	exists, err := st.Exists(context.Background(), "GEM/2025/B/1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNewRunnerValidates(t *testing.T) {
	_, err := NewRunner(nil, nil, nil, nil, []string{"chairs"})
	assert.Error(t, err)

	_, err = NewRunner(newTestStore(t), nil, nil, nil, nil)
	assert.Error(t, err)
}
