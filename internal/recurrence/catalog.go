package recurrence

import "strings"

// Built-in frequency catalog. Businesses can override or extend these
// per industry; the defaults cover the labels the booking forms ship
// with. Lookup is case-insensitive.
var defaultCatalog = map[string]string{
	"daily":            "1 day",
	"weekly":           "7 days",
	"every week":       "7 days",
	"every other week": "14 days",
	"biweekly":         "14 days",
	"bi-weekly":        "14 days",
	"every 4 weeks":    "28 days",
	"every four weeks": "28 days",
	"monthly":          "1 month",
	"every month":      "1 month",
	"quarterly":        "3 months",
}

// DefaultRepeats returns the built-in repeat unit for a frequency name.
// One-time frequencies (e.g. "One Time Deep Clean") deliberately have
// no entry; a series cannot be created from them.
func DefaultRepeats(frequencyName string) (string, bool) {
	repeats, ok := defaultCatalog[strings.ToLower(strings.TrimSpace(frequencyName))]
	return repeats, ok
}
