package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenderwatch/scanner/internal/models"
)

func testTender() *models.Tender {
	tender := models.NewTender()
	tender.BidID = "GEM/2025/B/1"
	tender.MatchedKeyword = "chairs"
	tender.Items = "Office Chairs"
	tender.Department = "Ministry of Example"
	tender.StartDate = "01-01-2025"
	tender.EndDate = "15-01-2025"
	tender.Link = "https://bidplus.gem.gov.in/showbidDocument/123"
	return tender
}

func TestNotifyPayload(t *testing.T) {
	var captured webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New(srv.URL)
	n.now = func() time.Time { return time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC) }

	require.NoError(t, n.Notify(context.Background(), testTender()))

	require.Len(t, captured.Embeds, 1)
	e := captured.Embeds[0]
	assert.Equal(t, "New Tender: chairs", e.Title)
	assert.Equal(t, "**Item:** Office Chairs", e.Description)
	assert.Equal(t, "https://bidplus.gem.gov.in/showbidDocument/123", e.URL)
	assert.Equal(t, embedColor, e.Color)
	assert.Equal(t, "Found at 09:30", e.Footer.Text)

	require.Len(t, e.Fields, 4)
	assert.Equal(t, embedField{Name: "Bid Number", Value: "GEM/2025/B/1", Inline: true}, e.Fields[0])
	assert.Equal(t, embedField{Name: "Start Date", Value: "01-01-2025", Inline: true}, e.Fields[1])
	assert.Equal(t, embedField{Name: "End Date", Value: "15-01-2025", Inline: true}, e.Fields[2])
	assert.Equal(t, embedField{Name: "Department", Value: "Ministry of Example", Inline: false}, e.Fields[3])
}

func TestNotifyNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := New(srv.URL).Notify(context.Background(), testTender())
	assert.ErrorContains(t, err, "429")
}

func TestNotifyUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Connection refused from here on.

	err := New(srv.URL).Notify(context.Background(), testTender())
	assert.Error(t, err)
}

func TestNotifyUnconfigured(t *testing.T) {
	n := New("")
	assert.False(t, n.Configured())
	assert.Error(t, n.Notify(context.Background(), testTender()))
}
