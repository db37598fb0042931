package loader

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sourceplane/hostcheck/internal/catalog"
	"github.com/sourceplane/hostcheck/internal/model"
	"gopkg.in/yaml.v3"
)

// LoadCatalog loads and validates a catalog YAML file
func LoadCatalog(path string) (*catalog.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates catalog YAML
func ParseCatalog(data []byte) (*catalog.Catalog, error) {
	var doc model.CatalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &catalog.ConfigError{Kind: "document", Reason: fmt.Sprintf("failed to parse catalog YAML: %v", err)}
	}
	return catalog.New(&doc)
}

// ReadDocument reads a DSL file (JSON or YAML) from disk
func ReadDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	return data, nil
}

// DecodeDocument parses JSON or YAML into the generic shape produced by
// encoding/json, so it can be fed to the schema validator unchanged.
func DecodeDocument(data []byte) (interface{}, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	// Round-trip through JSON to normalize number and map types
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, fmt.Errorf("failed to normalize document: %w", err)
	}
	return doc, nil
}

// DecodeDSL converts a normalized document into a ToDoDSL
func DecodeDSL(doc interface{}) (*model.ToDoDSL, error) {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal DSL: %w", err)
	}

	var dsl model.ToDoDSL
	if err := json.Unmarshal(jsonData, &dsl); err != nil {
		return nil, fmt.Errorf("failed to decode DSL: %w", err)
	}
	return &dsl, nil
}
