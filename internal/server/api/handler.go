package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/hlog"

	"tenderwatch/scanner/internal/models"
	"tenderwatch/scanner/internal/server/pagination"
	"tenderwatch/scanner/internal/server/storage"
	"tenderwatch/scanner/internal/store"
)

const defaultLimit = 100
const maxLimit = 1000

// Response structure for the tenders endpoint
type Response struct {
	Items      []models.Tender `json:"items"`
	NextCursor *string         `json:"next_cursor,omitempty"`
}

// TendersHandler holds dependencies for the triage API handler.
type TendersHandler struct {
	repo  storage.TenderRepository
	store *store.TenderStore
}

// NewTendersHandler creates a new handler instance.
func NewTendersHandler(repo storage.TenderRepository, st *store.TenderStore) *TendersHandler {
	return &TendersHandler{
		repo:  repo,
		store: st,
	}
}

// GetTenders handles requests to list tenders, newest first, with optional
// status filter and free-text search.
func (h *TendersHandler) GetTenders(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	log.Debug().Msg("Processing tenders request")

	ctx := r.Context()

	query := r.URL.Query()
	limitStr := query.Get("limit")
	cursorStr := query.Get("cursor")
	status := query.Get("status")
	search := query.Get("q")

	limit := defaultLimit
	if limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit <= 0 || parsedLimit > maxLimit {
			log.Warn().Err(err).Str("limit", limitStr).Msg("Invalid 'limit' parameter value")
			http.Error(w, fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", maxLimit), http.StatusBadRequest)
			return
		}
		limit = parsedLimit
	}

	if status != "" && !models.ValidStatus(status) {
		log.Warn().Str("status", status).Msg("Invalid 'status' parameter value")
		http.Error(w, "Invalid 'status' parameter: must be New, Bookmarked or Ignored", http.StatusBadRequest)
		return
	}

	repoQuery := storage.Query{
		Limit:  limit + 1, // Fetch one extra to detect the next page
		Status: status,
		Search: search,
	}

	if cursorStr != "" {
		ts, bidID, err := pagination.DecodeCursor(cursorStr)
		if err != nil {
			log.Warn().Err(err).Str("cursor", cursorStr).Msg("Invalid 'cursor' parameter")
			http.Error(w, "Invalid 'cursor' parameter", http.StatusBadRequest)
			return
		}
		repoQuery.CursorTS = &ts
		repoQuery.CursorBidID = &bidID
	}

	items, err := h.repo.FetchTenders(ctx, repoQuery)
	if err != nil {
		log.Error().Err(err).Str("cursor", cursorStr).Msg("Error fetching tenders from repository")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var nextCursorStr *string
	hasNextPage := len(items) > limit
	actualItems := items
	if hasNextPage {
		actualItems = items[:limit]
		if len(actualItems) > 0 {
			lastItem := actualItems[len(actualItems)-1]
			cursor := pagination.EncodeCursor(lastItem.DiscoveredAt.UTC(), lastItem.BidID)
			nextCursorStr = &cursor
		}
	}

	response := Response{
		Items:      actualItems,
		NextCursor: nextCursorStr,
	}

	jsonBytes, err := json.Marshal(response)
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, writeErr := w.Write(jsonBytes); writeErr != nil {
		log.Error().Err(writeErr).Msg("Error writing JSON response body to client")
	}
	log.Debug().Int("bytes_written", len(jsonBytes)).Msg("Response completed")
}

// statusUpdateRequest is the body of a status change.
type statusUpdateRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles triage actions: bookmark, ignore, or reset to New.
// Status is the only field the API ever mutates.
func (h *TendersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	bidID := r.PathValue("bid_id")
	if bidID == "" {
		http.Error(w, "Missing bid id", http.StatusBadRequest)
		return
	}

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Invalid status update body")
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if !models.ValidStatus(req.Status) {
		log.Warn().Str("status", req.Status).Msg("Invalid status value")
		http.Error(w, "Invalid status: must be New, Bookmarked or Ignored", http.StatusBadRequest)
		return
	}

	if err := h.store.UpdateStatus(r.Context(), bidID, req.Status); err != nil {
		log.Error().Err(err).Str("bid_id", bidID).Msg("Failed to update tender status")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	log.Info().Str("bid_id", bidID).Str("status", req.Status).Msg("Tender status updated")
	w.WriteHeader(http.StatusNoContent)
}
