package listing

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Parse turns the raw detail-page HTML handed over by the scraper into a
// Listing. The page carries three fragments we care about: a key/value
// table under the "Information" header, an extras <ul> under the
// "Vehicle extras, add-ons and accessories" header, and a free-text <div>
// following that list. A page with none of them is a parse failure; the
// orchestrator skips the listing and retries it on the next run.
func Parse(url, html string, discoveredAt time.Time) (Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Listing{}, fmt.Errorf("parsing detail page: %w", err)
	}

	l := Listing{
		URL:          url,
		Attributes:   parseInformationTable(doc),
		DiscoveredAt: discoveredAt,
	}
	l.Details, l.FreeText = parseExtras(doc)

	if len(l.Attributes) == 0 && len(l.Details) == 0 && l.FreeText == "" {
		return Listing{}, fmt.Errorf("no vehicle data found on %s", url)
	}

	return l, nil
}

// parseInformationTable reads the first table following a header that
// contains "Information" into a key/value map. Keys lose their trailing
// colon so "Mileage:" and "Mileage" land on the same attribute.
func parseInformationTable(doc *goquery.Document) map[string]string {
	attrs := map[string]string{}

	header := findHeader(doc, "Information")
	if header == nil {
		return attrs
	}

	table := header.NextAllFiltered("table").First()
	if table.Length() == 0 {
		table = header.Parent().Find("table").First()
	}

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		key := strings.TrimSuffix(strings.TrimSpace(cells.Eq(0).Text()), ":")
		value := strings.TrimSpace(cells.Eq(1).Text())
		if key != "" && value != "" {
			attrs[key] = value
		}
	})

	return attrs
}

// parseExtras reads the extras list and the free-text block that follows it.
func parseExtras(doc *goquery.Document) ([]string, string) {
	header := findHeader(doc, "Vehicle extras, add-ons and accessories")
	if header == nil {
		return nil, ""
	}

	var items []string
	ul := header.NextAllFiltered("ul").First()
	ul.Find("li").Each(func(_ int, li *goquery.Selection) {
		if text := strings.TrimSpace(li.Text()); text != "" {
			items = append(items, text)
		}
	})

	freeText := strings.TrimSpace(ul.NextAllFiltered("div").First().Text())
	return items, freeText
}

func findHeader(doc *goquery.Document, text string) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("header").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), text) {
			found = s
			return false
		}
		return true
	})
	return found
}
