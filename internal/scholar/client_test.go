package scholar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/juyoungml/pubsync/internal/normalize"
)

// profileSite serves a listing page and detail pages from memory and
// records which detail pages were requested.
type profileSite struct {
	mu             sync.Mutex
	listing        string
	listingStatus  int
	details        map[string]string
	failingDetails map[string]bool
	detailLatency  time.Duration
	detailHits     []string
	detailSpans    [][2]time.Time // Start and end of each detail response
	userAgents     []string
}

func (p *profileSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.userAgents = append(p.userAgents, r.Header.Get("User-Agent"))
	p.mu.Unlock()

	switch {
	case r.URL.Path == "/citations" && r.URL.Query().Get("view_op") == "":
		if p.listingStatus != 0 {
			w.WriteHeader(p.listingStatus)
			return
		}
		io.WriteString(w, p.listing)
	case r.URL.Path == "/citations":
		key := r.URL.Query().Get("citation_for_view")
		started := time.Now()
		p.mu.Lock()
		p.detailHits = append(p.detailHits, key)
		p.mu.Unlock()
		if p.detailLatency > 0 {
			time.Sleep(p.detailLatency)
		}
		defer func() {
			p.mu.Lock()
			p.detailSpans = append(p.detailSpans, [2]time.Time{started, time.Now()})
			p.mu.Unlock()
		}()
		if p.failingDetails[key] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, p.details[key])
	default:
		http.NotFound(w, r)
	}
}

func (p *profileSite) hits() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.detailHits...)
}

func listingRow(key, title, authors, venue, cites string) string {
	titleLink := ""
	if title != "" {
		titleLink = fmt.Sprintf(`<a href="/citations?view_op=view_citation&amp;hl=en&amp;citation_for_view=%s" class="gsc_a_at">%s</a>`, key, title)
	}
	return fmt.Sprintf(`<tr class="gsc_a_tr">
  <td class="gsc_a_t">%s<div class="gs_gray">%s</div><div class="gs_gray">%s</div></td>
  <td class="gsc_a_c"><a href="#" class="gsc_a_ac gs_ibl">%s</a></td>
</tr>`, titleLink, authors, venue, cites)
}

func listingPage(rows ...string) string {
	return `<html><body><table id="gsc_a_t"><tbody id="gsc_a_b">` + strings.Join(rows, "\n") + `</tbody></table></body></html>`
}

func detailPage(abstract, extra string) string {
	descr := ""
	if abstract != "" {
		descr = `<div class="gsc_oci_value" id="gsc_oci_descr"><div class="gsh_csp">` + abstract + `</div></div>`
	}
	return `<html><head><script>var x = "9999.99999";</script></head><body>` + descr + `<div>` + extra + `</div></body></html>`
}

func newTestClient(site *profileSite, opts ...ClientOption) (*Client, func()) {
	server := httptest.NewServer(site)
	base := []ClientOption{
		WithHTTPClient(server.Client()),
		WithBaseURL(server.URL),
		WithDelay(0),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return NewClient(append(base, opts...)...), server.Close
}

func TestScrape_Basic(t *testing.T) {
	site := &profileSite{
		listing: listingPage(
			listingRow("k1", "Prometheus 2", "S Kim, J Suk", "EMNLP, 2024", "150"),
			listingRow("k2", "CLIcK", "E Kim, J Suk", "LREC-COLING 2024", ""),
		),
		details: map[string]string{
			"k1": detailPage("Proprietary LMs such as GPT-4 are often employed.", "arXiv preprint arXiv:2405.01535"),
			"k2": detailPage("", "nothing here"),
		},
	}
	client, cleanup := newTestClient(site)
	defer cleanup()

	entries, err := client.Scrape(context.Background(), "mENsLCkAAAAJ")
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Scrape() returned %d entries, want 2", len(entries))
	}

	e := entries[0]
	if e.Position != 1 || e.Title != "Prometheus 2" {
		t.Errorf("entry[0] = %d %q, want 1 Prometheus 2", e.Position, e.Title)
	}
	if e.Authors != "S Kim, J Suk" || e.VenueYear != "EMNLP, 2024" || e.Citations != "150" {
		t.Errorf("entry[0] fields = %q %q %q", e.Authors, e.VenueYear, e.Citations)
	}
	if e.DetailAbstract != "Proprietary LMs such as GPT-4 are often employed." {
		t.Errorf("entry[0].DetailAbstract = %q", e.DetailAbstract)
	}
	if !strings.Contains(e.DetailText, "arXiv:2405.01535") {
		t.Errorf("entry[0].DetailText = %q, want identifier text", e.DetailText)
	}
	if strings.Contains(e.DetailText, "9999.99999") {
		t.Error("entry[0].DetailText contains script content")
	}
	if !strings.HasPrefix(e.DetailURL, "http://") || !strings.Contains(e.DetailURL, "citation_for_view=k1") {
		t.Errorf("entry[0].DetailURL = %q, want absolute detail URL", e.DetailURL)
	}

	if entries[1].Position != 2 {
		t.Errorf("entry[1].Position = %d, want 2", entries[1].Position)
	}
	if entries[1].Citations != "" {
		t.Errorf("entry[1].Citations = %q, want displayed empty text", entries[1].Citations)
	}

	for _, ua := range site.userAgents {
		if ua != DefaultUserAgent {
			t.Errorf("User-Agent = %q, want browser-like default", ua)
		}
	}
}

func TestScrape_SkipsRowsWithoutTitle(t *testing.T) {
	site := &profileSite{
		listing: listingPage(
			listingRow("k1", "", "Nobody", "Nowhere, 2020", "1"),
			listingRow("k2", "Titled", "A B", "ICML, 2023", "2"),
		),
		details: map[string]string{"k2": detailPage("abs", "")},
	}
	client, cleanup := newTestClient(site)
	defer cleanup()

	entries, err := client.Scrape(context.Background(), "id")
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Scrape() returned %d entries, want 1", len(entries))
	}
	if entries[0].Position != 1 || entries[0].Title != "Titled" {
		t.Errorf("entry = %d %q, want 1 Titled", entries[0].Position, entries[0].Title)
	}
	if hits := site.hits(); len(hits) != 1 || hits[0] != "k2" {
		t.Errorf("detail hits = %v, want [k2]", hits)
	}
}

func TestScrape_CapsEntries(t *testing.T) {
	var rows []string
	details := map[string]string{}
	for i := 1; i <= 30; i++ {
		key := fmt.Sprintf("k%d", i)
		rows = append(rows, listingRow(key, fmt.Sprintf("Paper %d", i), "A", "Venue, 2020", "0"))
		details[key] = detailPage("abstract", "")
	}
	site := &profileSite{listing: listingPage(rows...), details: details}
	client, cleanup := newTestClient(site)
	defer cleanup()

	entries, err := client.Scrape(context.Background(), "id")
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(entries) != 20 {
		t.Fatalf("Scrape() returned %d entries, want 20", len(entries))
	}
	for i, e := range entries {
		if e.Position != i+1 {
			t.Errorf("entry[%d].Position = %d, want %d", i, e.Position, i+1)
		}
	}

	hits := site.hits()
	if len(hits) != 20 {
		t.Fatalf("detail fetches = %d, want 20", len(hits))
	}
	for _, h := range hits {
		var n int
		fmt.Sscanf(h, "k%d", &n)
		if n > 20 {
			t.Errorf("detail page %s fetched beyond the cap", h)
		}
	}
}

func TestScrape_CustomCap(t *testing.T) {
	site := &profileSite{
		listing: listingPage(
			listingRow("k1", "One", "", "2020", "0"),
			listingRow("k2", "Two", "", "2021", "0"),
			listingRow("k3", "Three", "", "2022", "0"),
		),
		details: map[string]string{},
	}
	client, cleanup := newTestClient(site, WithMaxEntries(2))
	defer cleanup()

	entries, err := client.Scrape(context.Background(), "id")
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(entries) != 2 || len(site.hits()) != 2 {
		t.Errorf("entries = %d, hits = %d, want 2 and 2", len(entries), len(site.hits()))
	}
}

func TestScrape_DetailFailureIsRecoverable(t *testing.T) {
	site := &profileSite{
		listing: listingPage(
			listingRow("k1", "Broken detail", "A", "ICLR, 2022", "3"),
			listingRow("k2", "Working detail", "B", "ICLR, 2023", "4"),
		),
		details:        map[string]string{"k2": detailPage("fine", "")},
		failingDetails: map[string]bool{"k1": true},
	}
	client, cleanup := newTestClient(site)
	defer cleanup()

	entries, err := client.Scrape(context.Background(), "id")
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Scrape() returned %d entries, want 2", len(entries))
	}
	if entries[0].DetailAbstract != "" || entries[0].DetailText != "" {
		t.Errorf("failed detail should leave abstract and text empty, got %q / %q", entries[0].DetailAbstract, entries[0].DetailText)
	}
	if entries[1].DetailAbstract != "fine" {
		t.Errorf("entry[1].DetailAbstract = %q, want fine", entries[1].DetailAbstract)
	}
}

func TestScrape_FailedDetailYieldsNoIdentifier(t *testing.T) {
	site := &profileSite{
		listing: listingPage(
			listingRow("k1", "Paper arXiv:2301.12345", "A", "ICLR, 2023", "3"),
			listingRow("k2", "Other arXiv:2302.54321", "B", "ICLR, 2023", "4"),
		),
		details:        map[string]string{"k2": detailPage("fine", "")},
		failingDetails: map[string]bool{"k1": true},
	}
	client, cleanup := newTestClient(site)
	defer cleanup()

	entries, err := client.Scrape(context.Background(), "id")
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Scrape() returned %d entries, want 2", len(entries))
	}
	if entries[0].DetailFetched || !entries[1].DetailFetched {
		t.Errorf("DetailFetched = %v, %v; want false, true", entries[0].DetailFetched, entries[1].DetailFetched)
	}

	n := normalize.Normalizer{}
	if rec := n.Normalize(entries[0]); rec.Links.ArXiv != "" {
		t.Errorf("failed detail: Links.ArXiv = %q, want empty", rec.Links.ArXiv)
	}
	if rec := n.Normalize(entries[1]); rec.Links.ArXiv != "https://arxiv.org/abs/2302.54321" {
		t.Errorf("fetched detail: Links.ArXiv = %q, want title-derived link", rec.Links.ArXiv)
	}
}

func TestScrape_ListingFailureIsFatal(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		rateLimited bool
	}{
		{"server error", http.StatusServiceUnavailable, false},
		{"not found", http.StatusNotFound, false},
		{"rate limited", http.StatusTooManyRequests, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := &profileSite{listingStatus: tt.status}
			client, cleanup := newTestClient(site)
			defer cleanup()

			entries, err := client.Scrape(context.Background(), "id")
			if err == nil {
				t.Fatal("Scrape() should fail when the listing is unavailable")
			}
			if entries != nil {
				t.Errorf("Scrape() entries = %v, want nil", entries)
			}
			if !errors.Is(err, ErrListingUnavailable) {
				t.Errorf("error = %v, want ErrListingUnavailable", err)
			}
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) || httpErr.StatusCode != tt.status {
				t.Errorf("error = %v, want HTTPError with status %d", err, tt.status)
			}
			if IsRateLimited(err) != tt.rateLimited {
				t.Errorf("IsRateLimited() = %v, want %v", IsRateLimited(err), tt.rateLimited)
			}
		})
	}
}

func TestScrape_NetworkFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(WithBaseURL(url), WithDelay(0))
	_, err := client.Scrape(context.Background(), "id")
	if !errors.Is(err, ErrListingUnavailable) || !errors.Is(err, ErrNetworkError) {
		t.Errorf("error = %v, want ErrListingUnavailable wrapping ErrNetworkError", err)
	}
}

func TestScrape_EmptyProfileID(t *testing.T) {
	client := NewClient()
	if _, err := client.Scrape(context.Background(), "  "); !errors.Is(err, ErrEmptyProfileID) {
		t.Errorf("error = %v, want ErrEmptyProfileID", err)
	}
}

func TestScrape_PacesDetailFetches(t *testing.T) {
	site := &profileSite{
		listing: listingPage(
			listingRow("k1", "One", "", "2020", "0"),
			listingRow("k2", "Two", "", "2021", "0"),
			listingRow("k3", "Three", "", "2022", "0"),
		),
		details: map[string]string{},
	}
	delay := 30 * time.Millisecond
	client, cleanup := newTestClient(site, WithDelay(delay))
	defer cleanup()

	start := time.Now()
	if _, err := client.Scrape(context.Background(), "id"); err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	// Every detail fetch, including the first, waits one delay.
	if elapsed := time.Since(start); elapsed < 3*delay-5*time.Millisecond {
		t.Errorf("Scrape() took %v, want at least %v", elapsed, 3*delay)
	}
}

func TestScrape_PauseFollowsSlowResponses(t *testing.T) {
	site := &profileSite{
		listing: listingPage(
			listingRow("k1", "One", "", "2020", "0"),
			listingRow("k2", "Two", "", "2021", "0"),
			listingRow("k3", "Three", "", "2022", "0"),
		),
		details:       map[string]string{},
		detailLatency: 50 * time.Millisecond,
	}
	delay := 60 * time.Millisecond
	client, cleanup := newTestClient(site, WithDelay(delay))
	defer cleanup()

	if _, err := client.Scrape(context.Background(), "id"); err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}

	site.mu.Lock()
	spans := append([][2]time.Time(nil), site.detailSpans...)
	site.mu.Unlock()
	if len(spans) != 3 {
		t.Fatalf("detail responses = %d, want 3", len(spans))
	}
	// The idle time between one response ending and the next request
	// arriving is at least the delay, however long the response took.
	for i := 1; i < len(spans); i++ {
		if idle := spans[i][0].Sub(spans[i-1][1]); idle < delay-5*time.Millisecond {
			t.Errorf("idle gap before detail %d = %v, want at least %v", i+1, idle, delay)
		}
	}
}

func TestScrape_PacingBeyondDeadline(t *testing.T) {
	site := &profileSite{
		listing: listingPage(listingRow("k1", "One", "", "2020", "0")),
		details: map[string]string{},
	}
	client, cleanup := newTestClient(site, WithDelay(time.Hour))
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// The limiter cannot grant a token within the deadline, so the detail
	// fetch fails without blocking; the entry is still produced.
	entries, err := client.Scrape(ctx, "id")
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(entries) != 1 || entries[0].DetailText != "" {
		t.Errorf("entries = %+v, want one entry without detail", entries)
	}
}

func TestListingURL(t *testing.T) {
	client := NewClient(WithBaseURL("https://scholar.example.com/"), WithLanguage("ko"))
	got := client.ListingURL("mENsLCkAAAAJ")
	want := "https://scholar.example.com/citations?hl=ko&user=mENsLCkAAAAJ"
	if got != want {
		t.Errorf("ListingURL() = %q, want %q", got, want)
	}
}
