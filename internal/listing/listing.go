package listing

import (
	"sort"
	"strings"
	"time"
)

// Listing is a single parsed vehicle discovered on the auction site.
// Its canonical detail URL is the stable key everywhere: archive shards,
// the dedup ledger, and match results all refer to listings by URL.
type Listing struct {
	URL          string            `yaml:"url"`
	Attributes   map[string]string `yaml:"information"`
	Details      []string          `yaml:"details_list"`
	FreeText     string            `yaml:"details_text"`
	DiscoveredAt time.Time         `yaml:"discovered_at"`
}

// Brand returns the listing's brand attribute, if present.
func (l Listing) Brand() string {
	for _, key := range []string{"Brand", "Make", "Manufacturer"} {
		if v, ok := l.Attributes[key]; ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Description flattens the listing into the single text the relevance
// model scores against. The shape matches what the model was trained on:
// "key: value" attribute pairs, then the extras list, then the free text,
// all joined with " | ".
func (l Listing) Description() string {
	var parts []string

	for _, key := range sortedKeys(l.Attributes) {
		parts = append(parts, key+": "+l.Attributes[key])
	}

	if len(l.Details) > 0 {
		parts = append(parts, strings.Join(l.Details, " | "))
	}

	if l.FreeText != "" {
		parts = append(parts, l.FreeText)
	}

	return strings.Join(parts, " | ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// map iteration order is random; keep the description stable
	sort.Strings(keys)
	return keys
}
