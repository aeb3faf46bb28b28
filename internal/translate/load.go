package translate

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"dbusererr/internal/shared"
)

// entry is either a plain message or a set of plural forms.
type entry struct {
	text  string
	forms map[string]string
}

func (e *entry) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Decode(&e.text)
	case yaml.MappingNode:
		return n.Decode(&e.forms)
	default:
		return fmt.Errorf("line %d: expected a message or plural forms", n.Line)
	}
}

// Load reads a YAML catalog shaped as locale -> key -> message:
//
//	en:
//	  access.denied: "Access denied for %user%."
//	  cart.items:
//	    one: "%count% item"
//	    other: "%count% items"
//	de:
//	  access.denied: "Zugriff für %user% verweigert."
func Load(r io.Reader, fallback string, opts ...Option) (*Catalog, error) {
	var doc map[string]map[string]entry
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: decode: %w", shared.ErrCatalog, err)
	}

	c, err := NewCatalog(fallback, opts...)
	if err != nil {
		return nil, err
	}

	// Sorted for stable error reporting.
	locales := make([]string, 0, len(doc))
	for l := range doc {
		locales = append(locales, l)
	}
	sort.Strings(locales)

	for _, l := range locales {
		for key, e := range doc[l] {
			if e.forms != nil {
				err = c.AddPlural(l, key, e.forms)
			} else {
				err = c.Add(l, key, e.text)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// LoadFile is Load for a file on disk.
func LoadFile(path, fallback string, opts ...Option) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, shared.MarkKind(err, shared.KindCatalog)
	}
	defer f.Close()

	c, err := Load(f, fallback, opts...)
	if err != nil {
		return nil, shared.Wrap(err, path)
	}
	return c, nil
}
