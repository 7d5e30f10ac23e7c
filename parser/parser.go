// Package parser extracts book fields from the target site's HTML. The
// markup is inconsistent across pages, so every extractor degrades to a nil
// or zero value instead of failing.
package parser

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/bookdata-api/models"
)

// ratingVocab maps the star-rating CSS class words to numeric ratings.
var ratingVocab = map[string]int{
	"One":   1,
	"Two":   2,
	"Three": 3,
	"Four":  4,
	"Five":  5,
}

var (
	availableCountRe = regexp.MustCompile(`(?i)\((\d+)\s*available\)`)
	digitsRe         = regexp.MustCompile(`\d+`)
)

// Card is the raw extraction of one product card from a listing page.
type Card struct {
	Title       string
	Price       *float64
	Rating      *int
	Image       string
	ProductPage string
}

// ParsePrice converts a price like "£51.77" to a float, stripping the
// currency symbol and encoding-artifact characters. Returns nil on failure.
func ParsePrice(text string) *float64 {
	cleaned := strings.ReplaceAll(text, "£", "")
	cleaned = strings.ReplaceAll(cleaned, "Â", "")
	cleaned = strings.TrimSpace(cleaned)
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &value
}

// ParseAvailability interprets availability text such as
// "In stock (22 available)". The fallback order is fixed: a parenthesized
// count always means in stock; otherwise a bare digit run is the stock and
// availability depends on the "in stock" substring; otherwise only the
// substring decides.
func ParseAvailability(text string) (bool, *int) {
	text = strings.TrimSpace(text)
	inStock := strings.Contains(strings.ToLower(text), "in stock")

	if m := availableCountRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return true, &n
		}
	}
	if m := digitsRe.FindString(text); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return inStock, &n
		}
	}
	return inStock, nil
}

// Rating reads the star rating (1-5) from a product card's CSS classes.
// The first recognized class word wins; unrecognized vocab yields nil.
func Rating(card *goquery.Selection) *int {
	class, ok := card.Find("p.star-rating").First().Attr("class")
	if !ok {
		return nil
	}
	for _, word := range strings.Fields(class) {
		if value, found := ratingVocab[word]; found {
			return &value
		}
	}
	return nil
}

// Categories extracts the sidebar category list from the site root page.
func Categories(doc *goquery.Document) []models.Category {
	var cats []models.Category
	doc.Find("ul.nav.nav-list ul li a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}
		cats = append(cats, models.Category{
			Name: strings.TrimSpace(a.Text()),
			Href: href,
		})
	})
	return cats
}

// CategoryName reads the listing page heading used as the category label.
func CategoryName(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// Cards extracts every product card from a listing page. URLs are resolved
// against pageURL; product links have their fragment stripped.
func Cards(doc *goquery.Document, pageURL string) []Card {
	var cards []Card
	doc.Find("article.product_pod").Each(func(_ int, s *goquery.Selection) {
		card := Card{}

		anchor := s.Find("h3 a").First()
		if anchor.Length() > 0 {
			card.Title = strings.TrimSpace(anchor.AttrOr("title", ""))
			if card.Title == "" {
				card.Title = strings.TrimSpace(anchor.Text())
			}
			if href := anchor.AttrOr("href", ""); href != "" {
				card.ProductPage = stripFragment(ResolveURL(pageURL, href))
			}
		}

		if priceText := s.Find("p.price_color").First().Text(); priceText != "" {
			card.Price = ParsePrice(priceText)
		}
		card.Rating = Rating(s)

		if src := s.Find("img").First().AttrOr("src", ""); src != "" {
			card.Image = ResolveURL(pageURL, src)
		}

		cards = append(cards, card)
	})
	return cards
}

// NextPage returns the absolute URL of the "next" pagination link, or ""
// when the listing has no further pages.
func NextPage(doc *goquery.Document, pageURL string) string {
	href := doc.Find("li.next a").First().AttrOr("href", "")
	if href == "" {
		return ""
	}
	return ResolveURL(pageURL, href)
}

// DetailAvailability extracts the availability/stock pair from a product
// detail page. A missing availability element means out of stock.
func DetailAvailability(doc *goquery.Document) (bool, *int) {
	p := doc.Find("p.instock.availability").First()
	if p.Length() == 0 {
		return false, nil
	}
	return ParseAvailability(p.Text())
}

// DetailImage returns the higher-resolution image URL from a product detail
// page, resolved against pageURL, or "" when none is present.
func DetailImage(doc *goquery.Document, pageURL string) string {
	img := doc.Find(".thumbnail img").First()
	if img.Length() == 0 {
		img = doc.Find("div.item img").First()
	}
	src := img.AttrOr("src", "")
	if src == "" {
		return ""
	}
	return ResolveURL(pageURL, src)
}

// ResolveURL resolves href against base, returning "" when either side is
// unparseable.
func ResolveURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(h).String()
}

func stripFragment(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	return u.String()
}
