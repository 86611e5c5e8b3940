package search

import (
	"path/filepath"
	"testing"
)

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultLimit},
		{-3, DefaultLimit},
		{5, 5},
		{100, 100},
		{500, MaxLimit},
	}
	for _, tc := range tests {
		if got := ClampLimit(tc.in); got != tc.want {
			t.Errorf("ClampLimit(%d) = %d; want %d", tc.in, got, tc.want)
		}
	}
}

func TestBuildQuery_Empty(t *testing.T) {
	if q := BuildQuery("  --  "); q != nil {
		t.Errorf("BuildQuery of punctuation = %v; want nil", q)
	}
}

func TestRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	idx, err := OpenOrCreate(path)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}

	docs := map[string]Document{
		"111": NewDocument("Organic Oat Milk", "Oatly"),
		"222": NewDocument("Soy Milk", "Alpro"),
		"333": NewDocument("Crème Fraîche", ""),
	}
	for id, doc := range docs {
		if err := idx.Index(id, doc); err != nil {
			t.Fatalf("Index(%s): %v", id, err)
		}
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen to check the existing index is picked up rather than recreated.
	idx, err = OpenOrCreate(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	tests := []struct {
		query string
		top   string
	}{
		{"oat milk", "111"},
		{"creme fraiche", "333"},
		{"alpro", "222"},
		{"orgnic", "111"}, // fuzzy
	}
	for _, tc := range tests {
		ids, err := Run(idx, tc.query, 10)
		if err != nil {
			t.Fatalf("Run(%q): %v", tc.query, err)
		}
		if len(ids) == 0 {
			t.Errorf("Run(%q): no results", tc.query)
			continue
		}
		if ids[0] != tc.top {
			t.Errorf("Run(%q) top = %s; want %s (all %v)", tc.query, ids[0], tc.top, ids)
		}
	}
}
