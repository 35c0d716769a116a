package aggregate

import (
	"math/rand/v2"
	"testing"

	"github.com/TamperPanda/SDBLogger/models"
	"github.com/TamperPanda/SDBLogger/parser"
)

func TestUpsertAcrossPages(t *testing.T) {
	a := New()
	a.Upsert(0, models.Candidate{ID: 1, Name: "Apple", Quantity: 3})
	a.Upsert(0, models.Candidate{ID: 2, Name: "Pear", Quantity: 1})
	a.Upsert(30, models.Candidate{ID: 1, Name: "Apple", Quantity: 2})

	items := a.Items()
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].Key != "id:1" || items[0].Quantity != 5 {
		t.Fatalf("first item = %+v, want id:1 qty 5", items[0])
	}
	if items[1].Key != "id:2" || items[1].Quantity != 1 {
		t.Fatalf("second item = %+v, want id:2 qty 1", items[1])
	}
	if items[0].PageOffset != 0 {
		t.Fatalf("page offset = %d, want first occurrence 0", items[0].PageOffset)
	}
}

func TestFirstOccurrenceKeepsNonQuantityFields(t *testing.T) {
	a := New()
	if !a.Upsert(0, models.Candidate{ID: 4, Name: "Original", Type: "Food", ImageURL: "a.gif", Quantity: 1}) {
		t.Fatalf("first upsert should insert")
	}
	if a.Upsert(30, models.Candidate{ID: 4, Name: "Renamed", Type: "Toy", ImageURL: "b.gif", Quantity: 2}) {
		t.Fatalf("second upsert should merge")
	}
	got, ok := a.Get("id:4")
	if !ok {
		t.Fatalf("missing id:4")
	}
	want := models.AggregatedItem{Key: "id:4", ID: 4, Name: "Original", Type: "Food", ImageURL: "a.gif", Quantity: 3}
	if got != want {
		t.Fatalf("item = %+v, want %+v", got, want)
	}
}

func TestNameKeyedCollision(t *testing.T) {
	a := New()
	a.Upsert(0, models.Candidate{Name: "Blue  Grundo Plushie", Quantity: 1})
	a.Upsert(30, models.Candidate{Name: "blue grundo plushie", Quantity: 4})
	if a.Len() != 1 {
		t.Fatalf("len = %d, want 1", a.Len())
	}
	got, _ := a.Get("name:blue grundo plushie")
	if got.Quantity != 5 || got.Name != "Blue  Grundo Plushie" {
		t.Fatalf("item = %+v", got)
	}
	if ids := a.IDs(); len(ids) != 0 {
		t.Fatalf("ids = %v, want none", ids)
	}
}

func TestIdentifiedAndNamedStayApart(t *testing.T) {
	a := New()
	a.Upsert(0, models.Candidate{ID: 9, Name: "Apple", Quantity: 1})
	a.Upsert(0, models.Candidate{Name: "Apple", Quantity: 1})
	if a.Len() != 2 {
		t.Fatalf("len = %d, want 2", a.Len())
	}
	if ids := a.IDs(); len(ids) != 1 || ids[0] != 9 {
		t.Fatalf("ids = %v, want [9]", ids)
	}
}

func TestQuantityIsSumOfCandidates(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	a := New()
	sums := make(map[string]int)
	first := make(map[string]models.Candidate)

	for i := 0; i < 500; i++ {
		c := models.Candidate{Quantity: r.IntN(10)}
		if r.IntN(2) == 0 {
			c.ID = 1 + r.IntN(20)
		}
		c.Name = []string{"Apple", "apple ", "Pear", "Plum"}[r.IntN(4)]
		c.Type = []string{"Food", "Toy"}[r.IntN(2)]
		key := parser.ItemKey(c)
		sums[key] += c.Quantity
		if _, ok := first[key]; !ok {
			first[key] = c
		}
		a.Upsert(i, c)
	}

	if a.Len() != len(sums) {
		t.Fatalf("len = %d, want %d", a.Len(), len(sums))
	}
	for key, want := range sums {
		got, ok := a.Get(key)
		if !ok {
			t.Fatalf("missing %s", key)
		}
		if got.Quantity != want {
			t.Fatalf("%s qty = %d, want %d", key, got.Quantity, want)
		}
		if got.Name != first[key].Name || got.Type != first[key].Type {
			t.Fatalf("%s fields = %q/%q, want first %q/%q", key, got.Name, got.Type, first[key].Name, first[key].Type)
		}
	}
}

func TestReset(t *testing.T) {
	a := New()
	a.Upsert(0, models.Candidate{ID: 1, Quantity: 1})
	a.Reset()
	if a.Len() != 0 || len(a.Items()) != 0 {
		t.Fatalf("aggregator not empty after reset")
	}
	a.Upsert(0, models.Candidate{ID: 1, Quantity: 2})
	got, _ := a.Get("id:1")
	if got.Quantity != 2 {
		t.Fatalf("qty = %d, want 2", got.Quantity)
	}
}
