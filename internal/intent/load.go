package intent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/boycivenga/netgate/internal/logger"
)

// LoadFile loads a consolidated intent export: a single JSON object
// with sites, prefixes, vlans, and tags keys. Missing keys default to
// empty collections.
func LoadFile(path string, log logger.Logger) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read intent file: %w", err)
	}

	var set Set
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse intent file %s: %w", path, err)
	}

	set.Resolve()

	log.WithFields(map[string]interface{}{
		"sites":    len(set.Sites),
		"prefixes": len(set.Prefixes),
		"vlans":    len(set.VLANs),
		"tags":     len(set.Tags),
	}).Info("loaded intent export")

	return &set, nil
}

// LoadDir loads an intent export split across per-resource files
// (sites.json, prefixes.json, vlans.json, tags.json). Missing files are
// tolerated with a warning so partial exports still render.
func LoadDir(dir string, log logger.Logger) (*Set, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("intent directory %s: %w", dir, err)
	}

	set := &Set{}

	load := func(name string, dst interface{}) error {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			log.WithField("file", path).Warn("export file not found, skipping")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	}

	if err := load("sites.json", &set.Sites); err != nil {
		return nil, err
	}
	if err := load("prefixes.json", &set.Prefixes); err != nil {
		return nil, err
	}
	if err := load("vlans.json", &set.VLANs); err != nil {
		return nil, err
	}
	if err := load("tags.json", &set.Tags); err != nil {
		return nil, err
	}

	set.Resolve()

	log.WithFields(map[string]interface{}{
		"sites":    len(set.Sites),
		"prefixes": len(set.Prefixes),
		"vlans":    len(set.VLANs),
		"tags":     len(set.Tags),
	}).Info("loaded intent export")

	return set, nil
}

// Load picks the loading strategy based on whether path is a directory
// or a consolidated file.
func Load(path string, log logger.Logger) (*Set, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("intent path %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadDir(path, log)
	}
	return LoadFile(path, log)
}
