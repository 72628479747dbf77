package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCollectionsConfig_Fixture(t *testing.T) {
	path := filepath.Join("..", "..", "testdata", "config", "collections.json")
	cfg, found, err := LoadCollectionsConfig(path)
	if err != nil {
		t.Fatalf("LoadCollectionsConfig failed: %v", err)
	}
	if found != path {
		t.Errorf("found path = %q, want %q", found, path)
	}
	if cfg.DefaultCollection != "ladder" {
		t.Errorf("DefaultCollection = %q", cfg.DefaultCollection)
	}

	ids := cfg.ListCollections()
	if len(ids) != 3 || ids[0] != "ladder" || ids[1] != "scratch" || ids[2] != "tournaments" {
		t.Errorf("ListCollections() = %v", ids)
	}

	ladder, err := cfg.GetCollection("")
	if err != nil {
		t.Fatalf("GetCollection(default) failed: %v", err)
	}
	if ladder.Name != "Ladder Battles" || ladder.Exclude != "private" {
		t.Errorf("default collection = %+v", ladder)
	}

	tours, err := cfg.GetCollection("tournaments")
	if err != nil {
		t.Fatalf("GetCollection failed: %v", err)
	}
	if len(tours.Directories) != 2 {
		t.Errorf("tournaments directories = %v", tours.Directories)
	}

	_, err = cfg.GetCollection("nope")
	checkError(t, err, true, "not found")
}

func TestLoadCollectionsConfig_NotFound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	origDir, _ := os.Getwd()
	defer func() { _ = os.Chdir(origDir) }()
	_ = os.Chdir(t.TempDir())

	cfg, found, err := LoadCollectionsConfig("")
	if err != nil || cfg != nil || found != "" {
		t.Errorf("expected nothing found, got %v %q %v", cfg, found, err)
	}
}

func TestLoadCollectionsConfig_HomeDirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	origDir, _ := os.Getwd()
	defer func() { _ = os.Chdir(origDir) }()
	_ = os.Chdir(t.TempDir())

	dir := filepath.Join(home, ".config", "battlelog-tools")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	content := `{"collections": {"all": {"directories": ["/logs"]}}}`
	if err := os.WriteFile(filepath.Join(dir, "collections.json"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, found, err := LoadCollectionsConfig("")
	if err != nil {
		t.Fatalf("LoadCollectionsConfig failed: %v", err)
	}
	if cfg == nil || found != filepath.Join(dir, "collections.json") {
		t.Errorf("found = %q", found)
	}
}

func TestLoadCollectionsConfig_Errors(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		errorContains string
	}{
		{"Invalid JSON", `{"collections": `, "failed to parse"},
		{"No collections", `{"version": "1.0", "collections": {}}`, "no collections defined"},
		{"Unknown default", `{"default_collection": "x", "collections": {"a": {"directories": ["/a"]}}}`, "does not exist"},
		{"No directories", `{"collections": {"a": {"directories": []}}}`, "at least one directory"},
		{"Empty directory", `{"collections": {"a": {"directories": [""]}}}`, "empty strings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := LoadCollectionsConfig(writeCollections(t, tt.content))
			checkError(t, err, true, tt.errorContains)
		})
	}

	_, _, err := LoadCollectionsConfig(filepath.Join(t.TempDir(), "missing.json"))
	checkError(t, err, true, "collections config not found")
}

func TestGetCollection_NoDefault(t *testing.T) {
	cfg := &CollectionsConfig{Collections: map[string]Collection{"a": {Directories: []string{"/a"}}}}
	_, err := cfg.GetCollection("")
	checkError(t, err, true, "no default_collection")
}
