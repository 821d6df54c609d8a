package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileLoader reads a catalog file. The format is chosen by extension: .json,
// .yaml/.yml or .toml, each optionally compressed as .zst. A missing file is
// an empty catalog, not an error.
type FileLoader struct {
	path   string
	logger *slog.Logger
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{
		path:   path,
		logger: slog.Default().With("component", "catalog-file", "path", path),
	}
}

// Path returns the file the loader reads.
func (l *FileLoader) Path() string {
	return l.path
}

func (l *FileLoader) Load(ctx context.Context) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Warn("catalog file not found, starting with an empty catalog")
			return []Product{}, nil
		}
		return nil, fmt.Errorf("reading catalog file %s: %w", l.path, err)
	}
	name := l.path
	if strings.EqualFold(filepath.Ext(name), ".zst") {
		data, err = decompress(data)
		if err != nil {
			return nil, fmt.Errorf("decompressing catalog file %s: %w", l.path, err)
		}
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	products, err := Decode(filepath.Ext(name), data)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog file %s: %w", l.path, err)
	}
	l.logger.Info("catalog file loaded", "products", len(products))
	return products, nil
}

type productDoc struct {
	Products []Product `json:"products" yaml:"products" toml:"products"`
}

// Decode parses catalog bytes in the format named by ext (".json", ".yaml",
// ".yml" or ".toml"). JSON and YAML accept either a bare list of products or
// an object with a "products" list; TOML needs the [[products]] form.
func Decode(ext string, data []byte) ([]Product, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []Product{}, nil
	}
	var doc productDoc
	switch strings.ToLower(ext) {
	case ".json":
		if data[0] == '[' {
			if err := json.Unmarshal(data, &doc.Products); err != nil {
				return nil, err
			}
		} else if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if data[0] == '-' {
			if err := yaml.Unmarshal(data, &doc.Products); err != nil {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", ext)
	}
	if doc.Products == nil {
		doc.Products = []Product{}
	}
	return doc.Products, nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
