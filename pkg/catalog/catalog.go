// Package catalog reads category metadata (laps, distance, time limits).
package catalog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
)

// Catalog holds the categories in file order.
type Catalog struct {
	order []string
	cats  map[string]model.Category
}

type file struct {
	Categories []model.Category `yaml:"categories"`
}

func New(cats ...model.Category) (*Catalog, error) {
	ret := &Catalog{cats: make(map[string]model.Category)}
	for _, c := range cats {
		id := strings.ToUpper(strings.TrimSpace(c.ID))
		if id == "" {
			return nil, fmt.Errorf("category without id")
		}
		if _, ok := ret.cats[id]; ok {
			return nil, fmt.Errorf("duplicate category %q", id)
		}
		if c.Laps < 0 || c.NthWheel < 0 {
			return nil, fmt.Errorf("category %q: negative laps or nth wheel", id)
		}
		c.ID = id
		ret.cats[id] = c
		ret.order = append(ret.order, id)
	}
	return ret, nil
}

// Read parses a YAML document with a "categories" list.
func Read(r io.Reader) (*Catalog, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read categories: %w", err)
	}
	return New(f.Categories...)
}

func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Category returns the metadata of a category, the lookup ignores case.
func (c *Catalog) Category(id string) (model.Category, bool) {
	ret, ok := c.cats[strings.ToUpper(strings.TrimSpace(id))]
	return ret, ok
}

// IDs returns the category ids in file order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}

// Write stores the catalog as YAML.
func (c *Catalog) Write(w io.Writer) error {
	f := file{Categories: make([]model.Category, 0, len(c.order))}
	for _, id := range c.order {
		f.Categories = append(f.Categories, c.cats[id])
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return err
	}
	return enc.Close()
}
