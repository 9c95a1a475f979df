package portal

import "testing"

func TestUnitsFromHTMLHrefPatterns(t *testing.T) {
	html := `<html><body>
		<a href="/relatorio?unidade=101">Hospital Central</a>
		<a href="/relatorio?unidade=102">Santa Casa</a>
		<a href="/unidade/abc-9">Clínica Norte</a>
	</body></html>`

	units, err := unitsFromHTML(html)
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3: %+v", len(units), units)
	}
	if units[0].UnitID != "101" || units[0].UnitName != "Hospital Central" {
		t.Errorf("units[0] = %+v", units[0])
	}
	if units[2].UnitID != "abc-9" {
		t.Errorf("units[2].UnitID = %q, want %q", units[2].UnitID, "abc-9")
	}
}

func TestUnitsFromHTMLFirstSelectorWins(t *testing.T) {
	// Both the unidade links and the table links match selectors; only the
	// earlier selector's links may be returned.
	html := `<html><body>
		<a href="?unidade=7">Unidade Sete</a>
		<table><tbody><tr><td><a href="/other/55">Linha 55</a></td></tr></tbody></table>
	</body></html>`

	units, err := unitsFromHTML(html)
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1: %+v", len(units), units)
	}
	if units[0].UnitID != "7" {
		t.Errorf("UnitID = %q, want %q", units[0].UnitID, "7")
	}
}

func TestUnitsFromHTMLTextFallbackAndSkips(t *testing.T) {
	// No unidade/unit hrefs: the table-row selector applies. IDs come from
	// the numeric substring of the link text; links without one are skipped.
	html := `<html><body><table><tbody>
		<tr><td><a href="/x">Unidade 33</a></td></tr>
		<tr><td><a href="/y">Sem número</a></td></tr>
	</tbody></table></body></html>`

	units, err := unitsFromHTML(html)
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1: %+v", len(units), units)
	}
	if units[0].UnitID != "33" || units[0].UnitName != "Unidade 33" {
		t.Errorf("units[0] = %+v", units[0])
	}
}

func TestUnitsFromHTMLNoLinks(t *testing.T) {
	units, err := unitsFromHTML(`<html><body><p>nothing here</p></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 0 {
		t.Errorf("got %d units, want 0", len(units))
	}
}

func TestUnitIDFromLink(t *testing.T) {
	tests := []struct {
		href string
		text string
		want string
	}{
		{"?unidade=101", "whatever", "101"},
		{"/unidade/abc", "whatever", "abc"},
		{"?unit=9&x=1", "whatever", "9"},
		{"/UNIT/77", "whatever", "77"},
		{"/report", "Unidade 12", "12"},
		{"", "Hospital 450 Sul", "450"},
		{"/report", "no digits", ""},
	}

	for _, tt := range tests {
		if got := unitIDFromLink(tt.href, tt.text); got != tt.want {
			t.Errorf("unitIDFromLink(%q, %q) = %q, want %q", tt.href, tt.text, got, tt.want)
		}
	}
}
