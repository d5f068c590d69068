package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"tutord/pkg/types"
)

//go:embed catalog.schema.json
var schemaJSON string

const schemaURL = "catalog.schema.json"

// file is the on-disk catalog document.
type file struct {
	Default string                  `json:"default"`
	Models  []types.ModelDescriptor `json:"models"`
}

// LoadFile reads a catalog document based on its extension
// (.yaml/.yml, .json, .toml), validates it against the embedded schema and
// builds a Catalog from it.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return nil, fmt.Errorf("empty catalog path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := normalize(b, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return parse(doc)
}

// Parse validates and decodes a JSON catalog document.
func Parse(b []byte) (*Catalog, error) {
	return parse(b)
}

// normalize re-encodes YAML and TOML documents as JSON so that schema
// validation and decoding have a single input format.
func normalize(b []byte, ext string) ([]byte, error) {
	var generic any
	switch ext {
	case ".json":
		return b, nil
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &generic); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &generic); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported catalog extension: %s", ext)
	}
	return json.Marshal(generic)
}

func parse(doc []byte) (*Catalog, error) {
	var generic any
	if err := json.Unmarshal(doc, &generic); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	sch, err := compileSchema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(generic); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	var f file
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(f.Models, f.Default)
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}
	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}
	return sch, nil
}
