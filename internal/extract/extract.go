// Package extract turns the raw text of one rendered result card into a
// structured tender record. The listing page mixes labels with free-form
// prose, so extraction is deliberately delimiter-based rather than a grammar,
// and is accepted as lossy.
package extract

import (
	"errors"
	"strings"

	"tenderwatch/scanner/internal/models"
)

// Labels and markers observed in the listing's card layout.
const (
	labelItems      = "Items:"
	labelQuantity   = "Quantity:"
	labelStartDate  = "Start Date:"
	labelEndDate    = "End Date:"
	labelDepartment = "Department Name And Address:"

	bidIDPrefix = "GEM/"

	// Sentinels stored when a field cannot be located.
	SentinelNA      = "N/A"
	SentinelUnknown = "unknown"

	// Item descriptions are truncated to keep storage and alerts compact.
	maxItemsLen = 150
)

// ErrNoBidID tags a card that yields no usable identifier. Callers branch on
// it with errors.Is and skip the card; it is never stored or notified.
var ErrNoBidID = errors.New("card has no recognizable bid id")

// Card is the snapshot of one rendered result entry: its full visible text
// plus the href and text of the bid document anchor, when present.
type Card struct {
	Text       string `json:"text"`
	AnchorHref string `json:"anchorHref"`
	AnchorText string `json:"anchorText"`
}

// Extractor parses cards for a fixed listing site.
type Extractor struct {
	baseOrigin string
	listingURL string
}

// New creates an Extractor that resolves relative links against baseOrigin
// and falls back to listingURL when a card carries no anchor.
func New(baseOrigin, listingURL string) *Extractor {
	return &Extractor{baseOrigin: baseOrigin, listingURL: listingURL}
}

// Parse extracts a tender record from one card, tagged with the keyword that
// surfaced it. It returns ErrNoBidID when neither the anchor text nor an
// id-prefixed line yields an identifier.
func (e *Extractor) Parse(card Card, keyword string) (*models.Tender, error) {
	bidID := strings.TrimSpace(card.AnchorText)
	if bidID == "" {
		bidID = findBidIDLine(card.Text)
	}
	if bidID == "" {
		return nil, ErrNoBidID
	}

	link := e.listingURL
	if card.AnchorHref != "" {
		link = e.baseOrigin + card.AnchorHref
	}

	tender := models.NewTender()
	tender.BidID = bidID
	tender.MatchedKeyword = keyword
	tender.Link = link
	tender.Items = truncate(extractItems(card.Text), maxItemsLen)
	tender.StartDate, tender.EndDate = extractDates(card.Text)
	tender.Department = extractDepartment(card.Text)
	return tender, nil
}

// findBidIDLine scans line by line for the first line carrying the bid id
// prefix and returns it trimmed, or "" when no line matches.
func findBidIDLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, bidIDPrefix) {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

// extractItems returns the text between the items and quantity labels.
func extractItems(text string) string {
	_, after, found := strings.Cut(text, labelItems)
	if !found {
		return SentinelNA
	}
	items, _, _ := strings.Cut(after, labelQuantity)
	return strings.TrimSpace(items)
}

// extractDates returns the start and end date strings verbatim; no parsing or
// validation happens at write time.
func extractDates(text string) (startDate, endDate string) {
	startDate = SentinelNA
	endDate = SentinelNA

	if _, after, found := strings.Cut(text, labelStartDate); found {
		value, _, _ := strings.Cut(after, labelEndDate)
		// The site wraps the value; collapse internal line breaks.
		startDate = strings.TrimSpace(strings.ReplaceAll(value, "\n", ""))
	}
	if _, after, found := strings.Cut(text, labelEndDate); found {
		value, _, _ := strings.Cut(after, "\n")
		endDate = strings.TrimSpace(value)
	}
	return startDate, endDate
}

// extractDepartment takes the second line after the department label: the
// first line is a header repeat in the source layout. The two-line offset is
// brittle against layout drift; the sentinel is the only fallback.
func extractDepartment(text string) string {
	_, after, found := strings.Cut(text, labelDepartment)
	if !found {
		return SentinelUnknown
	}
	// lines[0] is the remainder of the label's own line; the first full line
	// after the label is a header repeat, the second carries the value.
	lines := strings.Split(after, "\n")
	if len(lines) < 3 {
		return SentinelUnknown
	}
	dept := strings.TrimSpace(lines[2])
	if dept == "" {
		return SentinelUnknown
	}
	return dept
}

// truncate bounds s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
