package listing

import (
	"strings"
	"testing"
	"time"
)

const detailPage = `
<html><body>
  <section>
    <header><h2>Information</h2></header>
    <table>
      <tr><td>Brand:</td><td>Volvo</td></tr>
      <tr><td>Mileage:</td><td>42000 km</td></tr>
      <tr><td>First registration:</td><td>2019</td></tr>
    </table>
  </section>
  <section>
    <header><h2>Vehicle extras, add-ons and accessories</h2></header>
    <ul>
      <li>Tow bar</li>
      <li>Heated seats</li>
    </ul>
    <div>Well maintained, single owner.</div>
  </section>
</body></html>`

func TestParseDetailPage(t *testing.T) {
	discovered := time.Date(2026, 8, 29, 6, 0, 0, 0, time.UTC)

	l, err := Parse("https://example.com/item/1/details", detailPage, discovered)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if l.URL != "https://example.com/item/1/details" {
		t.Errorf("unexpected url %q", l.URL)
	}
	if l.Attributes["Brand"] != "Volvo" {
		t.Errorf("expected brand Volvo, got %q", l.Attributes["Brand"])
	}
	if l.Attributes["Mileage"] != "42000 km" {
		t.Errorf("expected trimmed key without colon, got %q", l.Attributes["Mileage"])
	}
	if len(l.Details) != 2 || l.Details[0] != "Tow bar" {
		t.Errorf("unexpected extras %v", l.Details)
	}
	if l.FreeText != "Well maintained, single owner." {
		t.Errorf("unexpected free text %q", l.FreeText)
	}
	if !l.DiscoveredAt.Equal(discovered) {
		t.Errorf("unexpected discovery time %v", l.DiscoveredAt)
	}
}

func TestParseEmptyPage(t *testing.T) {
	_, err := Parse("https://example.com/item/2/details", "<html><body><p>404</p></body></html>", time.Now())
	if err == nil {
		t.Error("expected error for page without vehicle data")
	}
}

func TestParsePageWithoutExtras(t *testing.T) {
	html := `
<html><body>
  <header>Information</header>
  <table><tr><td>Brand</td><td>Opel</td></tr></table>
</body></html>`

	l, err := Parse("https://example.com/item/3/details", html, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Attributes["Brand"] != "Opel" {
		t.Errorf("expected Opel, got %q", l.Attributes["Brand"])
	}
	if len(l.Details) != 0 || l.FreeText != "" {
		t.Errorf("expected no extras, got %v / %q", l.Details, l.FreeText)
	}
}

func TestBrand(t *testing.T) {
	l := Listing{Attributes: map[string]string{"Make": " BMW "}}
	if l.Brand() != "BMW" {
		t.Errorf("expected BMW, got %q", l.Brand())
	}

	if (Listing{}).Brand() != "" {
		t.Error("expected empty brand for listing without attributes")
	}
}

func TestDescription(t *testing.T) {
	l := Listing{
		Attributes: map[string]string{"Brand": "Volvo", "Mileage": "42000 km"},
		Details:    []string{"Tow bar", "Heated seats"},
		FreeText:   "Single owner.",
	}

	desc := l.Description()
	for _, want := range []string{"Brand: Volvo", "Mileage: 42000 km", "Tow bar | Heated seats", "Single owner."} {
		if !strings.Contains(desc, want) {
			t.Errorf("description missing %q: %s", want, desc)
		}
	}

	// Attribute order must be stable across calls.
	if l.Description() != desc {
		t.Error("expected deterministic description")
	}
}
