// Package parser turns raw listing rows into candidate items.
package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/TamperPanda/SDBLogger/models"
	"github.com/TamperPanda/SDBLogger/transport"
)

// InputPrefix is the name prefix of the per-row identifier input.
const InputPrefix = "back_to_inv"

const maxNameLength = 120

var (
	inputIDPattern = regexp.MustCompile(`back_to_inv\[(\d+)\]`)
	linkIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`obj_info\.phtml.*?id=(\d+)`),
		regexp.MustCompile(`item_id=(\d+)`),
		regexp.MustCompile(`/items/(\d+)`),
	}
	trailingParen = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
	digitsOnly    = regexp.MustCompile(`^\d+$`)
)

// ExtractRow maps one raw row to a candidate. origin (scheme://host) is used to
// absolutize protocol- and root-relative image references.
func ExtractRow(row models.RawRow, origin string) (models.Candidate, error) {
	var c models.Candidate

	id, err := resolveID(row)
	if err != nil {
		return c, transport.ErrParse{Input: row.InputName + " " + row.Link, Err: err}
	}
	c.ID = id

	c.Name = resolveName(row)
	if c.ID == 0 && NormalizeName(c.Name) == "" {
		return c, transport.ErrParse{Input: strings.Join(row.Cells, " | "), Err: fmt.Errorf("row has neither identifier nor name")}
	}

	qty, err := resolveQuantity(row.Cells)
	if err != nil {
		return c, transport.ErrParse{Input: strings.Join(row.Cells, " | "), Err: err}
	}
	c.Quantity = qty

	if len(row.Cells) >= 4 {
		c.Type = strings.TrimSpace(row.Cells[3])
	}
	c.ImageURL = NormalizeImageURL(row.ImageSrc, origin)
	return c, nil
}

func resolveID(row models.RawRow) (int, error) {
	if m := inputIDPattern.FindStringSubmatch(row.InputName); m != nil {
		id, err := parseID(m[1])
		if err != nil || id > 0 {
			return id, err
		}
	}
	if row.Link == "" {
		return 0, nil
	}
	for _, pattern := range linkIDPatterns {
		if m := pattern.FindStringSubmatch(row.Link); m != nil {
			return parseID(m[1])
		}
	}
	return 0, nil
}

func parseID(digits string) (int, error) {
	id, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("item id %q: %w", digits, err)
	}
	return id, nil
}

// resolveName prefers the first line of the first cell and falls back to the
// first plausible bold span.
func resolveName(row models.RawRow) string {
	if len(row.Cells) > 0 {
		if line := PrimaryLine(row.Cells[0]); line != "" {
			return line
		}
	}
	for _, text := range row.Bold {
		text = strings.TrimSpace(text)
		if !plausibleName(text) {
			continue
		}
		return strings.TrimSpace(trailingParen.ReplaceAllString(text, ""))
	}
	return ""
}

func plausibleName(text string) bool {
	if text == "" || len(text) >= maxNameLength || digitsOnly.MatchString(text) {
		return false
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func resolveQuantity(cells []string) (int, error) {
	for _, cell := range cells {
		text := strings.TrimSpace(cell)
		if !digitsOnly.MatchString(text) {
			continue
		}
		qty, err := strconv.Atoi(text)
		if err != nil {
			return 0, fmt.Errorf("quantity %q: %w", text, err)
		}
		return qty, nil
	}
	return 0, nil
}

// PrimaryLine returns the first non-blank line of text, trimmed.
func PrimaryLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// NormalizeName lowercases name and collapses runs of whitespace.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// ItemKey is the aggregation key: id:<id> when an identifier is present, else name:<normalized name>.
func ItemKey(c models.Candidate) string {
	if c.ID > 0 {
		return "id:" + strconv.Itoa(c.ID)
	}
	return "name:" + NormalizeName(c.Name)
}

// NormalizeImageURL rewrites protocol-relative and root-relative references against origin.
func NormalizeImageURL(src, origin string) string {
	src = strings.TrimSpace(src)
	if src == "" || origin == "" {
		return src
	}
	base, err := url.Parse(origin)
	if err != nil || base.Scheme == "" {
		return src
	}
	switch {
	case strings.HasPrefix(src, "//"):
		return base.Scheme + ":" + src
	case strings.HasPrefix(src, "/"):
		return base.Scheme + "://" + base.Host + src
	default:
		return src
	}
}

// itemsCounter matches the "Items: 1,234" summary on a listing page.
var itemsCounter = regexp.MustCompile(`(?i)Items:\s*([\d,]+)`)

// ParseTotalItems extracts the total record count from a listing summary, 0 when absent.
func ParseTotalItems(text string) int {
	m := itemsCounter.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return n
}

// PageCount combines the selector-based and counter-based page totals, taking
// the larger so an undercount in either does not truncate the crawl.
func PageCount(hint models.PageHint, pageSize int) int {
	pages := hint.PageOptions
	if pageSize > 0 && hint.TotalItems > 0 {
		byCount := (hint.TotalItems + pageSize - 1) / pageSize
		if byCount > pages {
			pages = byCount
		}
	}
	if pages < 1 {
		pages = 1
	}
	return pages
}
