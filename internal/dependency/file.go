package dependency

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/shepherd-chms/pagecat/dep"
	"gopkg.in/yaml.v2"
)

// Catalog is the on-disk layout read by FileProvider.
type Catalog struct {
	AppName string     `json:"app_name" yaml:"app_name" toml:"app_name"`
	Plans   []dep.Plan `json:"plans" yaml:"plans" toml:"plans"`
}

// FileProvider reads the page content from a local catalog file. The format
// follows the extension: .json, .yaml/.yml or .toml.
type FileProvider struct {
	path string
}

// NewFileProvider creates a file provider for the given path.
func NewFileProvider(s string) (*FileProvider, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("file: invalid format: %q", s)
	}
	if _, err := catalogDecoder(s); err != nil {
		return nil, err
	}

	return &FileProvider{path: s}, nil
}

// AppName returns the catalog's app_name.
func (d *FileProvider) AppName(ctx context.Context) (string, error) {
	c, err := d.read(ctx)
	if err != nil {
		return "", err
	}
	return c.AppName, nil
}

// ActivePlans returns the active catalog plans. The file keeps its own
// order; sorting is left to the caller.
func (d *FileProvider) ActivePlans(ctx context.Context) ([]dep.Plan, error) {
	c, err := d.read(ctx)
	if err != nil {
		return nil, err
	}

	plans := []dep.Plan{}
	for _, p := range c.Plans {
		if p.IsActive {
			plans = append(plans, p)
		}
	}
	return plans, nil
}

// ID returns the human-friendly version of this provider.
func (d *FileProvider) ID() string {
	return providerID("file", d.path)
}

// Stringer interface reuses ID
func (d *FileProvider) String() string {
	return d.ID()
}

func (d *FileProvider) read(ctx context.Context) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, d.ID())
	}

	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, errors.Wrap(err, d.ID())
	}

	decode, err := catalogDecoder(d.path)
	if err != nil {
		return nil, err
	}

	var c Catalog
	if err := decode(data, &c); err != nil {
		return nil, errors.Wrap(err, d.ID())
	}
	return &c, nil
}

type decodeFunc func([]byte, interface{}) error

func catalogDecoder(path string) (decodeFunc, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return json.Unmarshal, nil
	case ".yaml", ".yml":
		return yaml.Unmarshal, nil
	case ".toml":
		return toml.Unmarshal, nil
	default:
		return nil, fmt.Errorf("file: unsupported catalog format %q", ext)
	}
}
