package channel

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	pkgerrors "github.com/careroute/interlink/errors"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce       sync.Once
	channelSchema    *gojsonschema.Schema
	schemaCompileErr error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		channelSchema, schemaCompileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	if schemaCompileErr != nil {
		return nil, pkgerrors.WrapFatal(schemaCompileErr, "channel", "compiledSchema", "compile embedded schema")
	}
	return channelSchema, nil
}

// Load reads one channel definition from a .json, .yaml or .yml file and
// returns it defaulted and validated.
func Load(path string) (*Channel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.WrapFatal(err, "channel", "Load", fmt.Sprintf("read %s", path))
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return nil, pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "channel", "Load",
			fmt.Sprintf("unsupported channel file extension %q", filepath.Ext(path)))
	}
}

// ParseJSON parses a JSON channel definition. The document is checked
// against the embedded schema before decoding so shape mistakes fail with
// field-level positions rather than half-decoded structs.
func ParseJSON(data []byte) (*Channel, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}
	var ch Channel
	if err := json.Unmarshal(data, &ch); err != nil {
		return nil, pkgerrors.WrapInvalid(err, "channel", "ParseJSON", "decode definition")
	}
	ch.ApplyDefaults()
	if err := ch.Validate(); err != nil {
		return nil, err
	}
	return &ch, nil
}

// ParseYAML parses a YAML channel definition by converting it to JSON and
// running it through the same schema validation as ParseJSON.
func ParseYAML(data []byte) (*Channel, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, pkgerrors.WrapInvalid(err, "channel", "ParseYAML", "decode YAML")
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return nil, pkgerrors.WrapInvalid(err, "channel", "ParseYAML", "convert YAML document")
	}
	return ParseJSON(jsonData)
}

// LoadDir loads every channel definition in dir (non-recursive), in file
// name order. Files with other extensions are skipped. Channel IDs and
// names must be unique across the set.
func LoadDir(dir string) ([]*Channel, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, pkgerrors.WrapFatal(err, "channel", "LoadDir", fmt.Sprintf("read %s", dir))
	}
	var channels []*Channel
	seenID := make(map[string]string)
	seenName := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		ch, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		if prev, ok := seenID[ch.ID]; ok {
			return nil, pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "channel", "LoadDir",
				fmt.Sprintf("%s reuses channel ID %s from %s", entry.Name(), ch.ID, prev))
		}
		if prev, ok := seenName[ch.Name]; ok {
			return nil, pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "channel", "LoadDir",
				fmt.Sprintf("%s reuses channel name %q from %s", entry.Name(), ch.Name, prev))
		}
		seenID[ch.ID] = entry.Name()
		seenName[ch.Name] = entry.Name()
		channels = append(channels, ch)
	}
	return channels, nil
}

// validateDocument rejects documents the schema cannot account for,
// reporting every violation in one error.
func validateDocument(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return pkgerrors.WrapInvalid(err, "channel", "validateDocument", "run schema validation")
	}
	if result.Valid() {
		return nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "channel", "validateDocument",
		"definition rejected by schema: "+strings.Join(details, "; "))
}
