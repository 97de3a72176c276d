package netbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/boycivenga/netgate/internal/errors"
	"github.com/boycivenga/netgate/internal/intent"
	"github.com/boycivenga/netgate/internal/logger"
)

// Exporter fetches intent from a source and writes per-resource
// snapshot files. Each resource gets a JSON file for the pipeline and
// a YAML mirror for humans reviewing the export in a pull request.
type Exporter struct {
	source IntentSource
	logger logger.Logger
}

// NewExporter returns an exporter backed by the given source.
func NewExporter(source IntentSource, log logger.Logger) *Exporter {
	return &Exporter{source: source, logger: log}
}

// Export fetches the full intent and writes sites, prefixes, vlans,
// and tags files into dir. It returns the fetched set so callers can
// feed the render stage without re-reading the files.
func (e *Exporter) Export(ctx context.Context, dir string) (*intent.Set, error) {
	set, err := e.source.FetchIntent(ctx)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.New(errors.ErrorTypeFileSystem, errors.StageExport,
			fmt.Sprintf("failed to create export directory: %s", dir)).
			WithCause(err.Error())
	}

	resources := []struct {
		name string
		data interface{}
	}{
		{"sites", set.Sites},
		{"prefixes", set.Prefixes},
		{"vlans", set.VLANs},
		{"tags", set.Tags},
	}

	for _, r := range resources {
		if err := e.writeResource(dir, r.name, r.data); err != nil {
			return nil, err
		}
	}

	e.logger.WithField("dir", dir).Info("Intent export written")
	return set, nil
}

func (e *Exporter) writeResource(dir, name string, data interface{}) error {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	jsonBytes = append(jsonBytes, '\n')

	jsonPath := filepath.Join(dir, name+".json")
	if err := os.WriteFile(jsonPath, jsonBytes, 0644); err != nil {
		return errors.New(errors.ErrorTypeFileSystem, errors.StageExport,
			fmt.Sprintf("failed to write %s", jsonPath)).
			WithCause(err.Error())
	}

	yamlBytes, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s as YAML: %w", name, err)
	}

	yamlPath := filepath.Join(dir, name+".yaml")
	if err := os.WriteFile(yamlPath, yamlBytes, 0644); err != nil {
		return errors.New(errors.ErrorTypeFileSystem, errors.StageExport,
			fmt.Sprintf("failed to write %s", yamlPath)).
			WithCause(err.Error())
	}

	e.logger.WithFields(map[string]interface{}{
		"resource": name,
		"json":     jsonPath,
		"yaml":     yamlPath,
	}).Debug("Wrote resource snapshot")
	return nil
}
