package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Collection is a named set of log directories
type Collection struct {
	Name        string   `json:"name"`        // Human-readable name for reports
	Directories []string `json:"directories"` // Root directories to process
	Exclude     string   `json:"exclude"`     // Optional exclude substring, used when none is given
}

// CollectionsConfig represents the collections file
type CollectionsConfig struct {
	Version           string                `json:"version"`            // Config file version
	DefaultCollection string                `json:"default_collection"` // Used when no directories or -collection are given
	Collections       map[string]Collection `json:"collections"`        // Collections keyed by ID
}

// Validate checks the configuration for errors
func (c *CollectionsConfig) Validate() error {
	if len(c.Collections) == 0 {
		return fmt.Errorf("no collections defined in configuration")
	}

	// Validate default_collection references an existing collection
	if c.DefaultCollection != "" {
		if _, exists := c.Collections[c.DefaultCollection]; !exists {
			return fmt.Errorf("default_collection '%s' does not exist in collections", c.DefaultCollection)
		}
	}

	for id, collection := range c.Collections {
		if len(collection.Directories) == 0 {
			return fmt.Errorf("collection '%s': at least one directory is required", id)
		}
		for _, dir := range collection.Directories {
			if dir == "" {
				return fmt.Errorf("collection '%s': directories must not be empty strings", id)
			}
		}
	}

	return nil
}

// GetCollection returns a collection by ID, falling back to
// default_collection if id is empty
func (c *CollectionsConfig) GetCollection(id string) (*Collection, error) {
	if id == "" {
		if c.DefaultCollection == "" {
			return nil, fmt.Errorf("no collection ID specified and no default_collection configured")
		}
		id = c.DefaultCollection
	}

	collection, exists := c.Collections[id]
	if !exists {
		return nil, fmt.Errorf("collection '%s' not found (available: %v)", id, c.ListCollections())
	}

	return &collection, nil
}

// ListCollections returns all collection IDs in sorted order
func (c *CollectionsConfig) ListCollections() []string {
	ids := make([]string, 0, len(c.Collections))
	for id := range c.Collections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadCollectionsConfig loads and parses collections.json.
// If configPath is empty, it searches standard locations.
// Returns nil, "", nil if no file is found; that is not an error.
func LoadCollectionsConfig(configPath string) (*CollectionsConfig, string, error) {
	var searchPaths []string

	// If explicit path provided, only search that
	if configPath != "" {
		searchPaths = append(searchPaths, configPath)
	} else {
		searchPaths = append(searchPaths,
			"./collections.json",
			"./configs/collections.json",
		)

		// Add user config directory if HOME is set
		if home := os.Getenv("HOME"); home != "" {
			searchPaths = append(searchPaths,
				filepath.Join(home, ".config", "battlelog-tools", "collections.json"),
			)
		}
	}

	for _, path := range searchPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // Try next path
			}
			return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
		}

		var config CollectionsConfig
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, "", fmt.Errorf("failed to parse %s: %w", path, err)
		}

		if err := config.Validate(); err != nil {
			return nil, "", fmt.Errorf("invalid config in %s: %w", path, err)
		}

		return &config, path, nil
	}

	// If explicit path was provided but not found, that's an error
	if configPath != "" {
		return nil, "", fmt.Errorf("collections config not found: %s", configPath)
	}

	return nil, "", nil
}
