// Package compose - loader.go implements deployment document loading.
package compose

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lumivoice/ttsdeploy/internal/logger"
)

// LoadFile reads and parses a deployment document from the given path.
//
// Parsing is strict: unknown fields and unrecognized top-level sections
// are rejected, so a typo in the descriptor surfaces here instead of as a
// silently ignored setting.
//
// Parameters:
//   - path: Path to the YAML deployment descriptor
//
// Returns:
//   - Parsed Document
//   - Error if the file cannot be read or the document is malformed
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deployment document %s: %w", path, err)
	}

	doc, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse deployment document %s: %w", path, err)
	}

	logger.Debug("Loaded deployment document %s: %d service(s), %d network(s)",
		path, len(doc.Services), len(doc.Networks))

	return doc, nil
}

// Load parses a deployment document from a reader.
//
// The document must declare at least one service. Network declarations are
// optional at parse time; whether every service references a declared
// network is a resolver concern, not a parse concern.
func Load(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("document is empty")
		}
		return nil, err
	}

	if len(doc.Services) == 0 {
		return nil, fmt.Errorf("document declares no services")
	}

	return &doc, nil
}
