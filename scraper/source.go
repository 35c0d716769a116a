package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/TamperPanda/SDBLogger/config"
	"github.com/TamperPanda/SDBLogger/metrics"
	"github.com/TamperPanda/SDBLogger/models"
	"github.com/TamperPanda/SDBLogger/parser"
	"github.com/TamperPanda/SDBLogger/transport"
)

// ListingPath is the deposit-box listing page on the game site.
const ListingPath = "/safetydeposit.phtml"

const pageKey = "sdb_page"

// PageSource fetches listing pages by offset.
type PageSource interface {
	// Hint reads the page-count signals from the first listing page.
	Hint(ctx context.Context) (models.PageHint, error)
	// FetchPage returns the raw rows of the listing page at offset.
	FetchPage(ctx context.Context, offset int) ([]models.RawRow, error)
}

// pageData collects what the collector callbacks saw for one request.
type pageData struct {
	rows   []models.RawRow
	hint   models.PageHint
	parsed bool
	status int
	err    error
}

// CollySource is a PageSource backed by a synchronous colly collector.
type CollySource struct {
	base      *url.URL
	category  string
	objName   string
	collector *colly.Collector
	metrics   *metrics.Metrics

	mu        sync.Mutex
	firstPage []models.RawRow
	haveFirst bool
}

// NewCollySource builds a page source for the listing at cfg.BaseURL. m may be nil.
func NewCollySource(cfg *config.Config, m *metrics.Metrics) (*CollySource, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.PageTimeout)
	collector.WithTransport(transport.NewTransport(cfg.PageTimeout))

	s := &CollySource{
		base:      parsed,
		category:  cfg.Category,
		objName:   cfg.ObjName,
		collector: collector,
		metrics:   m,
	}
	s.configureHandlers()
	return s, nil
}

func (s *CollySource) configureHandlers() {
	s.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
	})

	s.collector.OnResponse(func(r *colly.Response) {
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			s.metrics.ObserveDuration("page", time.Since(start))
		}
	})

	s.collector.OnError(func(r *colly.Response, err error) {
		page, ok := r.Ctx.GetAny(pageKey).(*pageData)
		if !ok {
			return
		}
		page.status = r.StatusCode
		page.err = err
	})

	s.collector.OnHTML("html", func(e *colly.HTMLElement) {
		page, ok := e.Request.Ctx.GetAny(pageKey).(*pageData)
		if !ok {
			return
		}
		page.rows = extractRows(e.DOM)
		page.hint = extractHint(e.DOM)
		page.parsed = true
	})
}

// PageURL returns the listing URL for offset, carrying the category and name filters.
func (s *CollySource) PageURL(offset int) string {
	u := *s.base
	u.Path = strings.TrimSuffix(u.Path, "/") + ListingPath
	u.RawQuery = url.Values{
		"category": {s.category},
		"obj_name": {s.objName},
		"offset":   {strconv.Itoa(offset)},
	}.Encode()
	return u.String()
}

// Hint fetches the first listing page and reads both page-count signals. Its
// rows are kept and served to the next FetchPage(0) without another request.
func (s *CollySource) Hint(ctx context.Context) (models.PageHint, error) {
	page, err := s.fetch(ctx, 0)
	if err != nil {
		return models.PageHint{}, err
	}
	s.mu.Lock()
	s.firstPage = page.rows
	s.haveFirst = true
	s.mu.Unlock()
	return page.hint, nil
}

// FetchPage fetches one listing page. An in-flight request is never
// interrupted; ctx is only checked before it is issued.
func (s *CollySource) FetchPage(ctx context.Context, offset int) ([]models.RawRow, error) {
	if offset == 0 {
		s.mu.Lock()
		rows, ok := s.firstPage, s.haveFirst
		s.firstPage, s.haveFirst = nil, false
		s.mu.Unlock()
		if ok {
			return rows, nil
		}
	}
	page, err := s.fetch(ctx, offset)
	if err != nil {
		return nil, err
	}
	return page.rows, nil
}

func (s *CollySource) fetch(ctx context.Context, offset int) (*pageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target := s.PageURL(offset)
	page := &pageData{}
	reqCtx := colly.NewContext()
	reqCtx.Put(pageKey, page)

	err := s.collector.Request("GET", target, nil, reqCtx, nil)
	if err != nil || page.err != nil {
		if page.err != nil {
			err = page.err
		}
		return nil, transport.Classify(err, page.status)
	}
	if !page.parsed {
		return nil, transport.ErrParse{Input: target, Err: fmt.Errorf("response was not an HTML document")}
	}
	slog.Debug("listing page fetched",
		slog.Int("offset", offset),
		slog.Int("rows", len(page.rows)),
	)
	return page, nil
}

// extractRows returns the identifier-bearing rows of the first table under
// .content that contains any.
func extractRows(doc *goquery.Selection) []models.RawRow {
	content := doc.Find(".content").First()
	if content.Length() == 0 {
		return nil
	}

	inputSel := `input[name^="` + parser.InputPrefix + `"]`
	var rows []models.RawRow
	content.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		if table.Find(inputSel).Length() == 0 {
			return true
		}
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			if tr.Find(inputSel).Length() > 0 {
				rows = append(rows, rowFromSelection(tr))
			}
		})
		return false
	})
	return rows
}

// rowFromSelection flattens one table row into a RawRow.
func rowFromSelection(tr *goquery.Selection) models.RawRow {
	var row models.RawRow
	tr.Children().Each(func(_ int, cell *goquery.Selection) {
		row.Cells = append(row.Cells, cell.Text())
	})
	tr.Find("b").Each(func(_ int, b *goquery.Selection) {
		row.Bold = append(row.Bold, strings.TrimSpace(b.Text()))
	})
	row.Link = strings.TrimSpace(tr.Find(`a[href*="iteminfo.phtml"]`).First().AttrOr("href", ""))
	row.InputName = tr.Find(`input[name^="` + parser.InputPrefix + `"]`).First().AttrOr("name", "")
	row.ImageSrc = strings.TrimSpace(tr.Find("img").First().AttrOr("src", ""))
	return row
}

func extractHint(doc *goquery.Selection) models.PageHint {
	var hint models.PageHint
	hint.PageOptions = doc.Find(`select[name="offset"] option`).Length()
	hint.TotalItems = parser.ParseTotalItems(doc.Find(".content > table").First().Text())
	return hint
}
