package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is a supported parameter document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatForPath picks the document format from a file extension.
// Unknown extensions fall back to JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

// document is the persisted form of a Set. Field order is the canonical key
// order, which keeps saved files byte-stable across runs.
type document struct {
	ModelName        string         `json:"model_name" yaml:"model_name" toml:"model_name"`
	Model            string         `json:"model" yaml:"model" toml:"model"`
	Temperature      float64        `json:"temperature" yaml:"temperature" toml:"temperature"`
	MaxTokens        int            `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	TopP             float64        `json:"top_p" yaml:"top_p" toml:"top_p"`
	FrequencyPenalty float64        `json:"frequency_penalty" yaml:"frequency_penalty" toml:"frequency_penalty"`
	PresencePenalty  float64        `json:"presence_penalty" yaml:"presence_penalty" toml:"presence_penalty"`
	N                int            `json:"n" yaml:"n" toml:"n"`
	BestOf           int            `json:"best_of" yaml:"best_of" toml:"best_of"`
	LogitBias        map[string]int `json:"logit_bias" yaml:"logit_bias" toml:"logit_bias"`
}

func (s Set) document() document {
	c := s.Clone()
	return document{
		ModelName:        c.Model,
		Model:            c.Model,
		Temperature:      c.Temperature,
		MaxTokens:        c.MaxTokens,
		TopP:             c.TopP,
		FrequencyPenalty: c.FrequencyPenalty,
		PresencePenalty:  c.PresencePenalty,
		N:                c.N,
		BestOf:           c.BestOf,
		LogitBias:        c.LogitBias,
	}
}

// Encode writes s to w in the given format.
func (s Set) Encode(w io.Writer, format Format) error {
	doc := s.document()

	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(doc)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(doc); err != nil {
			return err
		}
		return encoder.Close()
	case FormatTOML:
		return toml.NewEncoder(w).Encode(doc)
	default:
		return fmt.Errorf("unsupported document format: %s (supported: json, yaml, toml)", format)
	}
}

// Save writes s to path. The document is written to a temporary file in the
// same directory and renamed into place, so path is either fully written or
// left untouched.
func (s Set) Save(path string) (err error) {
	var buf bytes.Buffer
	if err := s.Encode(&buf, FormatForPath(path)); err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrIO, path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file in %s: %v", ErrIO, dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrIO, path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %v", ErrIO, path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrIO, path, err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("%w: chmod %s: %v", ErrIO, path, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: rename into %s: %v", ErrIO, path, err)
	}
	return nil
}

// Load reads a parameter document into a configuration map suitable for
// FromConfig. The format is chosen from the file extension.
func Load(path string) (map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrIO, path, err)
	}
	return Decode(content, FormatForPath(path))
}

// Decode parses a parameter document held in memory.
func Decode(content []byte, format Format) (map[string]any, error) {
	cfg := map[string]any{}

	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(content, &cfg)
	case FormatYAML:
		err = yaml.Unmarshal(content, &cfg)
	case FormatTOML:
		err = toml.Unmarshal(content, &cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported document format: %s", ErrConfig, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s document: %v", ErrConfig, format, err)
	}
	return cfg, nil
}

// LoadSet reads and validates the parameter document at path.
func LoadSet(path string, opts ...Option) (Set, error) {
	cfg, err := Load(path)
	if err != nil {
		return Set{}, err
	}
	return FromConfig(cfg, opts...)
}
