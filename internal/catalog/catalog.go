// Package catalog loads the basin catalog: named drainage basins with their
// physical parameters, reference stations and unit hydrograph.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/couchcryptid/hydro-data-etl-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// Catalog is an immutable set of basins keyed by name. It is safe for
// concurrent use.
type Catalog struct {
	basins map[string]domain.Basin
}

type file struct {
	Basins []domain.Basin `yaml:"basins"`
}

// Load reads a catalog YAML file. ${VAR} references are expanded from the
// environment before parsing.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}
	return New(f.Basins...)
}

// New builds a catalog from basins, rejecting invalid definitions and
// duplicate names.
func New(basins ...domain.Basin) (*Catalog, error) {
	c := &Catalog{basins: make(map[string]domain.Basin, len(basins))}
	var errs []error
	for i, b := range basins {
		if err := b.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("basins[%d]: %w", i, err))
			continue
		}
		if _, dup := c.basins[b.Name]; dup {
			errs = append(errs, fmt.Errorf("basins[%d]: duplicate basin name %q", i, b.Name))
			continue
		}
		c.basins[b.Name] = b
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// Basin implements domain.BasinLookup. The returned unit hydrograph is a
// copy.
func (c *Catalog) Basin(name string) (domain.Basin, bool) {
	if c == nil {
		return domain.Basin{}, false
	}
	b, ok := c.basins[name]
	if ok && b.UnitHydrograph != nil {
		b.UnitHydrograph = append(b.UnitHydrograph[:0:0], b.UnitHydrograph...)
	}
	return b, ok
}

// Names lists the basin names in sorted order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.basins))
	for name := range c.basins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len is the number of basins.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.basins)
}
