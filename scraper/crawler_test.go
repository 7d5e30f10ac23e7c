package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/bookdata-api/fetcher"
	"github.com/aluiziolira/bookdata-api/models"
)

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func newMockFetcher(transport http.RoundTripper) fetcher.Fetcher {
	f := fetcher.New(fetcher.Options{MaxRetries: 1})
	f.WithTransport(transport)
	return f
}

// buildListingPage renders one category listing page with the given book
// ids, matching the target site's markup.
func buildListingPage(category string, ids []int, nextHref string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<div class=\"page-header\"><h1>%s</h1></div>", category)
	b.WriteString("<section>")
	for _, id := range ids {
		b.WriteString("<article class=\"product_pod\">")
		fmt.Fprintf(&b, "<img src=\"../../media/book-%d.jpg\"/>", id)
		fmt.Fprintf(&b, "<p class=\"star-rating Three\"></p>")
		fmt.Fprintf(&b, "<h3><a href=\"../../book-%d/index.html\" title=\"Book %d\">Book %d</a></h3>", id, id, id)
		fmt.Fprintf(&b, "<p class=\"price_color\">£%d.99</p>", id)
		b.WriteString("</article>")
	}
	b.WriteString("</section>")
	if nextHref != "" {
		fmt.Fprintf(&b, "<ul class=\"pager\"><li class=\"next\"><a href=\"%s\">next</a></li></ul>", nextHref)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// buildDetailPage renders one product page with a stock count and a
// full-size image.
func buildDetailPage(id, available int) string {
	return fmt.Sprintf(`<html><body>
		<div class="item active"><img src="../../media/full/book-%d.jpg"/></div>
		<p class="instock availability"><i class="icon-ok"></i> In stock (%d available) </p>
	</body></html>`, id, available)
}

func TestCrawlerWalksPagination(t *testing.T) {
	base := "http://example.test/"
	transport := httpmock.NewMockTransport()

	transport.RegisterResponder("GET", base+"catalogue/category/travel_2/index.html",
		htmlResponder(buildListingPage("Travel", []int{1, 2}, "page-2.html")))
	transport.RegisterResponder("GET", base+"catalogue/category/travel_2/page-2.html",
		htmlResponder(buildListingPage("Travel", []int{3}, "")))

	for _, id := range []int{1, 2, 3} {
		transport.RegisterResponder("GET", fmt.Sprintf("%scatalogue/book-%d/index.html", base, id),
			htmlResponder(buildDetailPage(id, id*10)))
	}

	f := newMockFetcher(transport)
	crawler := NewCategoryCrawler(f, f, base, 0, 0, NewMetrics())

	books, err := crawler.Crawl(context.Background(), models.Category{
		Name: "Travel",
		Href: "catalogue/category/travel_2/index.html",
	})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if len(books) != 3 {
		t.Fatalf("books = %d, want 3", len(books))
	}

	first := books[0]
	if first.Title != "Book 1" {
		t.Fatalf("title = %q", first.Title)
	}
	if first.Category != "Travel" {
		t.Fatalf("category = %q, want page heading", first.Category)
	}
	if first.Price == nil || *first.Price != 1.99 {
		t.Fatalf("price = %v, want 1.99", first.Price)
	}
	if !first.Availability {
		t.Fatalf("availability should be refined from the detail page")
	}
	if first.Stock == nil || *first.Stock != 10 {
		t.Fatalf("stock = %v, want 10", first.Stock)
	}
	if first.Image != base+"media/full/book-1.jpg" {
		t.Fatalf("image = %q, want detail page image", first.Image)
	}

	last := books[2]
	if last.Title != "Book 3" {
		t.Fatalf("last title = %q, pagination did not reach page 2", last.Title)
	}
}

func TestCrawlerToleratesDetailFailure(t *testing.T) {
	base := "http://example.test/"
	transport := httpmock.NewMockTransport()

	transport.RegisterResponder("GET", base+"catalogue/category/mystery_3/index.html",
		htmlResponder(buildListingPage("Mystery", []int{1, 2}, "")))
	transport.RegisterResponder("GET", base+"catalogue/book-1/index.html",
		htmlResponder(buildDetailPage(1, 5)))
	transport.RegisterResponder("GET", base+"catalogue/book-2/index.html",
		httpmock.NewStringResponder(http.StatusNotFound, ""))

	f := newMockFetcher(transport)
	crawler := NewCategoryCrawler(f, f, base, 0, 0, NewMetrics())

	books, err := crawler.Crawl(context.Background(), models.Category{
		Name: "Mystery",
		Href: "catalogue/category/mystery_3/index.html",
	})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("books = %d, a failed detail page must not drop the record", len(books))
	}

	good, bad := books[0], books[1]
	if !good.Availability || good.Stock == nil {
		t.Fatalf("first book should carry detail-page availability")
	}
	if bad.Availability || bad.Stock != nil {
		t.Fatalf("failed detail page must leave defaults, got %v/%v", bad.Availability, bad.Stock)
	}
	if bad.Image != base+"catalogue/media/book-2.jpg" {
		t.Fatalf("failed detail page must keep the listing image, got %q", bad.Image)
	}
}

func TestCrawlerAbortsOnListingFailure(t *testing.T) {
	base := "http://example.test/"
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", base+"catalogue/category/gone_9/index.html",
		httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	f := newMockFetcher(transport)
	crawler := NewCategoryCrawler(f, f, base, 0, 0, NewMetrics())

	_, err := crawler.Crawl(context.Background(), models.Category{
		Name: "Gone",
		Href: "catalogue/category/gone_9/index.html",
	})
	if err == nil {
		t.Fatalf("listing failure must abort the category")
	}
}
