package parser

import (
	"strings"
	"testing"

	"github.com/TamperPanda/SDBLogger/models"
	"github.com/TamperPanda/SDBLogger/transport"
)

const origin = "https://www.neopets.com"

func TestExtractRow(t *testing.T) {
	tests := []struct {
		name string
		row  models.RawRow
		want models.Candidate
	}{
		{
			name: "input identifier and bold name",
			row: models.RawRow{
				Cells:     []string{"", "Jhudora Plushie (cursed)\nA plushie of the dark faerie.", "Plushie", "Toy", "3", ""},
				Bold:      []string{"Jhudora Plushie (cursed)"},
				InputName: "back_to_inv[12345]",
				ImageSrc:  "//images.neopets.com/items/plu_jhudora.gif",
			},
			want: models.Candidate{ID: 12345, Name: "Jhudora Plushie", Quantity: 3, Type: "Toy", ImageURL: "https://images.neopets.com/items/plu_jhudora.gif"},
		},
		{
			name: "first cell text wins over bold",
			row: models.RawRow{
				Cells:     []string{"Green Apple\nsecond line", "", "", "Food", "12"},
				Bold:      []string{"Red Apple"},
				InputName: "back_to_inv[7]",
			},
			want: models.Candidate{ID: 7, Name: "Green Apple", Quantity: 12, Type: "Food"},
		},
		{
			name: "link identifier fallback",
			row: models.RawRow{
				Cells: []string{"", "x", "", "Book", "1"},
				Bold:  []string{"Tale of Woe"},
				Link:  "https://www.neopets.com/iteminfo.phtml?obj_info_id=1&item_id=4567",
			},
			want: models.Candidate{ID: 4567, Name: "Tale of Woe", Quantity: 1, Type: "Book"},
		},
		{
			name: "zero input identifier falls back to link",
			row: models.RawRow{
				Cells:     []string{"Tale of Woe", "", "", "Book", "1"},
				InputName: "back_to_inv[0]",
				Link:      "https://www.neopets.com/iteminfo.phtml?item_id=4567",
			},
			want: models.Candidate{ID: 4567, Name: "Tale of Woe", Quantity: 1, Type: "Book"},
		},
		{
			name: "items path identifier",
			row: models.RawRow{
				Cells: []string{"", "", "", "Food", "2"},
				Bold:  []string{"Pizza"},
				Link:  "https://itemdb.com.br/items/88",
			},
			want: models.Candidate{ID: 88, Name: "Pizza", Quantity: 2, Type: "Food"},
		},
		{
			name: "bold skips numeric and oversized spans",
			row: models.RawRow{
				Cells:    []string{"", "", "5"},
				Bold:     []string{"  ", "42", strings.Repeat("a", 130), "---", "Usuki Doll (r90)"},
				ImageSrc: "/images/usuki.gif",
			},
			want: models.Candidate{Name: "Usuki Doll", Quantity: 5, ImageURL: "https://www.neopets.com/images/usuki.gif"},
		},
		{
			name: "no quantity cell",
			row: models.RawRow{
				Cells:     []string{"Mystery Box", "abc", "1 2"},
				InputName: "back_to_inv[3]",
				ImageSrc:  "https://images.neopets.com/x.gif",
			},
			want: models.Candidate{ID: 3, Name: "Mystery Box", ImageURL: "https://images.neopets.com/x.gif"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractRow(tt.row, origin)
			if err != nil {
				t.Fatalf("ExtractRow() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ExtractRow() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtractRowNameMismatchIsVisible(t *testing.T) {
	// When the first cell and the bold span disagree the first cell is used.
	// The disagreement is a heuristic, so the test pins it rather than hiding it.
	row := models.RawRow{
		Cells: []string{"Faerie Paint Brush", "", "", "Brush", "1"},
		Bold:  []string{"Fire Paint Brush"},
	}
	got, err := ExtractRow(row, origin)
	if err != nil {
		t.Fatalf("ExtractRow() error = %v", err)
	}
	if got.Name != "Faerie Paint Brush" {
		t.Fatalf("name = %q, want first cell text", got.Name)
	}
	if got.Name == row.Bold[0] {
		t.Fatalf("expected first cell and bold span to disagree in this fixture")
	}
}

func TestExtractRowErrors(t *testing.T) {
	tests := []struct {
		name string
		row  models.RawRow
	}{
		{
			name: "no id and no name",
			row:  models.RawRow{Cells: []string{"", "", "4"}},
		},
		{
			name: "quantity overflow",
			row:  models.RawRow{Cells: []string{"Apple", "99999999999999999999999"}},
		},
		{
			name: "identifier overflow",
			row:  models.RawRow{InputName: "back_to_inv[99999999999999999999999]", Cells: []string{"Apple"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractRow(tt.row, origin)
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := transport.Label(err); got != "parse" {
				t.Fatalf("label = %q, want parse", got)
			}
		})
	}
}

func TestItemKey(t *testing.T) {
	tests := []struct {
		name string
		c    models.Candidate
		want string
	}{
		{name: "id", c: models.Candidate{ID: 12, Name: "Ignored"}, want: "id:12"},
		{name: "name", c: models.Candidate{Name: "  Blue   Grundo\tPlushie "}, want: "name:blue grundo plushie"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ItemKey(tt.c); got != tt.want {
				t.Fatalf("ItemKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeImageURL(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{src: "", want: ""},
		{src: "//images.neopets.com/a.gif", want: "https://images.neopets.com/a.gif"},
		{src: "/a.gif", want: "https://www.neopets.com/a.gif"},
		{src: "https://cdn.test/a.gif", want: "https://cdn.test/a.gif"},
		{src: "relative/a.gif", want: "relative/a.gif"},
	}
	for _, tt := range tests {
		if got := NormalizeImageURL(tt.src, origin); got != tt.want {
			t.Fatalf("NormalizeImageURL(%q) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestParseTotalItems(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{text: "Your Safety Deposit Box  Items: 1,234  Qty: 5,678", want: 1234},
		{text: "items:45", want: 45},
		{text: "nothing here", want: 0},
	}
	for _, tt := range tests {
		if got := ParseTotalItems(tt.text); got != tt.want {
			t.Fatalf("ParseTotalItems(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		name string
		hint models.PageHint
		want int
	}{
		{name: "no signals", hint: models.PageHint{}, want: 1},
		{name: "selector only", hint: models.PageHint{PageOptions: 4}, want: 4},
		{name: "counter only", hint: models.PageHint{TotalItems: 61}, want: 3},
		{name: "counter exceeds selector", hint: models.PageHint{PageOptions: 2, TotalItems: 91}, want: 4},
		{name: "selector exceeds counter", hint: models.PageHint{PageOptions: 5, TotalItems: 30}, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PageCount(tt.hint, 30); got != tt.want {
				t.Fatalf("PageCount() = %d, want %d", got, tt.want)
			}
		})
	}
}
