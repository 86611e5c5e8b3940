package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/korjavin/nomnom/internal/off"
	"github.com/korjavin/nomnom/internal/reference"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	root := newRootCmd()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func seedDataDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "data")
	s, err := reference.Open(dir, nil)
	if err != nil {
		t.Fatalf("reference.Open: %v", err)
	}
	b := s.NewWriteBatch()
	if _, err := b.Put(off.Product{
		Code:        "3017620422003",
		ProductName: "Nutella",
		Brands:      "Ferrero",
		Nutriments: map[string]any{
			"energy-kcal_100g":   539.0,
			"proteins_100g":      6.3,
			"carbohydrates_100g": 57.5,
			"fat_100g":           30.9,
		},
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("batch Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return dir
}

func TestRootHelp(t *testing.T) {
	out, err := run(t, "--help")
	if err != nil {
		t.Fatalf("execute root help: %v", err)
	}
	for _, sub := range []string{"lookup", "search", "override", "cache"} {
		if !strings.Contains(out, sub) {
			t.Errorf("help output missing %q", sub)
		}
	}
}

func TestLookupAndOverride(t *testing.T) {
	t.Setenv("DATA_DIR", "")
	t.Setenv("OVERRIDE_DIR", "")
	t.Setenv("CACHE_PATH", "")
	dataDir := seedDataDir(t)
	cachePath := filepath.Join(t.TempDir(), "cache.db")
	common := []string{"--data-dir", dataDir, "--cache", cachePath}

	out, err := run(t, append(common, "lookup", "3017620422003")...)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !strings.Contains(out, "Food: Nutella") || !strings.Contains(out, "Source: bulk_reference") {
		t.Errorf("lookup output:\n%s", out)
	}

	out, err = run(t, append(common, "cache", "list")...)
	if err != nil || !strings.Contains(out, "3017620422003") {
		t.Errorf("cache list = %q, %v", out, err)
	}

	out, err = run(t, append(common, "override", "add",
		"--barcode", "3017620422003", "--name", "Nutella (jar label)",
		"--kcal", "530", "--protein", "6", "--carbs", "58", "--fat", "31")...)
	if err != nil {
		t.Fatalf("override add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Saved override") {
		t.Errorf("override add output: %s", out)
	}

	out, err = run(t, append(common, "lookup", "3017620422003")...)
	if err != nil {
		t.Fatalf("lookup after override: %v", err)
	}
	if !strings.Contains(out, "Food: Nutella (jar label)") || !strings.Contains(out, "Source: override") {
		t.Errorf("lookup after override:\n%s", out)
	}

	out, err = run(t, append(common, "search", "nutella")...)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if strings.Count(out, "3017620422003") != 1 || !strings.Contains(out, "override") {
		t.Errorf("search output:\n%s", out)
	}

	if _, err := run(t, append(common, "cache", "delete", "3017620422003")...); err != nil {
		t.Errorf("cache delete: %v", err)
	}
	if _, err := run(t, append(common, "cache", "delete", "3017620422003")...); err == nil {
		t.Error("second cache delete succeeded")
	}
	out, err = run(t, append(common, "cache", "purge")...)
	if err != nil || !strings.Contains(out, "Purged 0") {
		t.Errorf("cache purge = %q, %v", out, err)
	}
}

func TestOverrideAdd_MissingMacros(t *testing.T) {
	t.Setenv("DATA_DIR", "")
	t.Setenv("OVERRIDE_DIR", "")
	t.Setenv("CACHE_PATH", "")
	dataDir := seedDataDir(t)
	_, err := run(t, "--data-dir", dataDir, "override", "add", "--name", "Mystery bar", "--kcal", "200")
	if err == nil || !strings.Contains(err.Error(), "protein_g is required") {
		t.Errorf("override add = %v; want missing macro error", err)
	}
}

func TestRequiresDataDir(t *testing.T) {
	t.Setenv("DATA_DIR", "")
	t.Setenv("OVERRIDE_DIR", "")
	t.Setenv("CACHE_PATH", "")
	if _, err := run(t, "lookup", "3017620422003"); err == nil {
		t.Error("lookup without a data dir succeeded")
	}
	if _, err := run(t, "cache", "purge"); err == nil {
		t.Error("cache purge without a cache path succeeded")
	}
}
