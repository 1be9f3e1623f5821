package config

// Constants defining default values for application configuration
const (
	DefaultDBPath       = "./tenders.db"
	DefaultKeywordsPath = "./keywords.txt"

	// Public listing of open bids. The site re-renders results client-side,
	// so the scanner drives a real browser session against it.
	BaseOrigin = "https://bidplus.gem.gov.in"
	ListingURL = BaseOrigin + "/all-bids"

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultInterval = 30 // Minutes between scan cycles

	DefaultLogLevel = "debug"
)

// DefaultKeywords is used when neither the keywords file nor the
// SCANNER_KEYWORDS variable provides a list.
var DefaultKeywords = []string{
	"blinds",
	"curtains",
	"vinyl",
	"sticker",
	"name plate",
	"name board",
	"reflector",
	"roller blinds",
	"lamination",
	"netlon",
	"led stand",
	"neon sign",
	"led board",
	"nameboard",
}
