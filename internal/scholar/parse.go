package scholar

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors for the profile markup.
const (
	rowSelector       = "tr.gsc_a_tr"
	titleSelector     = "a.gsc_a_at"
	graySelector      = "div.gs_gray"
	citationsSelector = "a.gsc_a_ac"
	abstractSelector  = "#gsc_oci_descr"
)

// DefaultCitations is used when a row has no citation element.
const DefaultCitations = "0"

// ListingRow is one row of the profile listing table.
type ListingRow struct {
	Title     string
	DetailURL string
	Authors   string
	VenueYear string
	Citations string
}

// Detail is what a publication detail page yields.
type Detail struct {
	Abstract string
	Text     string // Whole-page text, searched for identifiers
}

// ParseListing extracts rows from a listing document in page order.
// Rows without a title are returned with an empty Title; callers skip them.
// Relative detail links are resolved against base.
func ParseListing(doc *goquery.Document, base *url.URL) []ListingRow {
	var rows []ListingRow
	doc.Find(rowSelector).Each(func(_ int, s *goquery.Selection) {
		var row ListingRow

		title := s.Find(titleSelector).First()
		if title.Length() > 0 {
			row.Title = strings.TrimSpace(title.Text())
			href, _ := title.Attr("href")
			row.DetailURL = resolveURL(base, href)
		}

		gray := s.Find(graySelector)
		if gray.Length() > 0 {
			row.Authors = strings.TrimSpace(gray.Eq(0).Text())
		}
		if gray.Length() > 1 {
			row.VenueYear = strings.TrimSpace(gray.Eq(1).Text())
		}

		row.Citations = DefaultCitations
		if cite := s.Find(citationsSelector).First(); cite.Length() > 0 {
			row.Citations = strings.TrimSpace(cite.Text())
		}

		rows = append(rows, row)
	})
	return rows
}

// ParseDetail extracts the abstract and the visible page text from a detail document.
func ParseDetail(doc *goquery.Document) Detail {
	var d Detail
	if descr := doc.Find(abstractSelector).First(); descr.Length() > 0 {
		d.Abstract = strings.TrimSpace(descr.Text())
	}

	doc.Find("script, style, noscript").Remove()
	d.Text = strings.Join(strings.Fields(doc.Text()), " ")
	return d
}

// resolveURL makes href absolute against base. An unparsable href is
// joined textually so the paper link is never empty.
func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return strings.TrimRight(base.String(), "/") + href
	}
	return base.ResolveReference(ref).String()
}
