// Package storage persists cycles, responses and settings as YAML files or
// in a SQLite database, and loads program definitions.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileVersion is written to every YAML data file.
const fileVersion = "1.0"

// readYAML decodes path into v. A missing file leaves v untouched and is
// not an error.
func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("reading %s: parsing YAML: %w", filepath.Base(path), err)
	}
	return nil
}

// writeYAML encodes v to path, creating the parent directory. The data is
// written to a temporary file and renamed so readers never see a partial
// file.
func writeYAML(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("writing %s: creating directory: %w", filepath.Base(path), err)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("writing %s: marshaling YAML: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
