// Package catalog holds the static allow-list of record families and their fields.
// Every column name that reaches a SQL statement is resolved through a Catalog.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

var (
	ErrUnknownFamily = errors.New("unknown record family")
	ErrUnknownField  = errors.New("unknown field")
)

// Family names one of the managed record kinds.
type Family string

const (
	Contacts Family = "contacts"
	Users    Family = "users"
)

// Shape describes what kind of value a field holds.
type Shape string

const (
	FreeText   Shape = "free_text"
	DigitsOnly Shape = "digits_only"
	EmailLike  Shape = "email_like"
	Date       Shape = "date"
)

func (s Shape) valid() bool {
	switch s {
	case FreeText, DigitsOnly, EmailLike, Date:
		return true
	}
	return false
}

// Field is one catalog entry. Entries are immutable once loaded.
type Field struct {
	Family     Family
	Name       string
	Label      string
	Shape      Shape
	Required   bool
	MaxLength  int
	Searchable bool
	Updatable  bool
	Secret     bool     // stored but never returned to callers
	Values     []string // closed enumeration, empty when any value is allowed
}

// Catalog is the loaded, validated allow-list.
type Catalog struct {
	families []Family
	tables   map[Family]string
	fields   map[Family][]Field
	byName   map[Family]map[string]Field
}

type document struct {
	Families []struct {
		Name   string `yaml:"name"`
		Table  string `yaml:"table"`
		Fields []struct {
			Name       string   `yaml:"name"`
			Label      string   `yaml:"label"`
			Shape      string   `yaml:"shape"`
			Required   bool     `yaml:"required"`
			MaxLength  int      `yaml:"max_length"`
			Searchable bool     `yaml:"searchable"`
			Updatable  bool     `yaml:"updatable"`
			Secret     bool     `yaml:"secret"`
			Values     []string `yaml:"values"`
		} `yaml:"fields"`
	} `yaml:"families"`
}

var identifier = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Parse builds a Catalog from its YAML form and rejects anything that could not
// be used verbatim as a SQL identifier.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		tables: make(map[Family]string),
		fields: make(map[Family][]Field),
		byName: make(map[Family]map[string]Field),
	}

	for _, fam := range doc.Families {
		family := Family(fam.Name)
		if !identifier.MatchString(fam.Name) || !identifier.MatchString(fam.Table) {
			return nil, fmt.Errorf("family %q: invalid family or table name %q", fam.Name, fam.Table)
		}
		if _, dup := c.tables[family]; dup {
			return nil, fmt.Errorf("family %q declared twice", fam.Name)
		}
		if len(fam.Fields) == 0 {
			return nil, fmt.Errorf("family %q has no fields", fam.Name)
		}

		c.families = append(c.families, family)
		c.tables[family] = fam.Table
		c.byName[family] = make(map[string]Field, len(fam.Fields))

		for _, raw := range fam.Fields {
			f := Field{
				Family:     family,
				Name:       raw.Name,
				Label:      raw.Label,
				Shape:      Shape(raw.Shape),
				Required:   raw.Required,
				MaxLength:  raw.MaxLength,
				Searchable: raw.Searchable,
				Updatable:  raw.Updatable,
				Secret:     raw.Secret,
				Values:     raw.Values,
			}
			if !identifier.MatchString(f.Name) || f.Name == "id" {
				return nil, fmt.Errorf("family %q: invalid field name %q", fam.Name, f.Name)
			}
			if !f.Shape.valid() {
				return nil, fmt.Errorf("field %s.%s: unknown shape %q", fam.Name, f.Name, raw.Shape)
			}
			if f.MaxLength < 0 {
				return nil, fmt.Errorf("field %s.%s: negative max_length", fam.Name, f.Name)
			}
			if _, dup := c.byName[family][f.Name]; dup {
				return nil, fmt.Errorf("field %s.%s declared twice", fam.Name, f.Name)
			}
			if f.Secret && (f.Searchable || f.Updatable) {
				return nil, fmt.Errorf("field %s.%s: a secret field cannot be searchable or updatable", fam.Name, f.Name)
			}
			if f.Label == "" {
				f.Label = f.Name
			}
			c.fields[family] = append(c.fields[family], f)
			c.byName[family][f.Name] = f
		}
	}

	return c, nil
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Parse(catalogYAML)
})

// Default returns the process-wide catalog embedded in the binary.
// The embedded document is covered by tests, so a load failure is a programming error.
func Default() *Catalog {
	c, err := loadDefault()
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded catalog is invalid: %v", err))
	}
	return c
}

// Families lists the declared families in document order.
func (c *Catalog) Families() []Family {
	return append([]Family(nil), c.families...)
}

// Table returns the table backing a family.
func (c *Catalog) Table(family Family) (string, error) {
	t, ok := c.tables[family]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	return t, nil
}

// Fields returns every field of the family in catalog order.
func (c *Catalog) Fields(family Family) ([]Field, error) {
	fs, ok := c.fields[family]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	return append([]Field(nil), fs...), nil
}

// Searchable returns the fields that may appear in a search criterion.
func (c *Catalog) Searchable(family Family) ([]Field, error) {
	fs, err := c.Fields(family)
	if err != nil {
		return nil, err
	}
	out := fs[:0]
	for _, f := range fs {
		if f.Searchable {
			out = append(out, f)
		}
	}
	return out, nil
}

// Lookup finds a field by its exact name.
func (c *Catalog) Lookup(family Family, name string) (Field, error) {
	fields, ok := c.byName[family]
	if !ok {
		return Field{}, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	f, ok := fields[name]
	if !ok {
		return Field{}, fmt.Errorf("%w: %q in %s", ErrUnknownField, name, family)
	}
	return f, nil
}

// Resolve maps a user selection to a field. The selection is either a field
// name (case-insensitive) or the field's 1-based position in catalog order.
// Anything else is rejected.
func (c *Catalog) Resolve(family Family, selection string) (Field, error) {
	fields, ok := c.fields[family]
	if !ok {
		return Field{}, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}

	sel := strings.ToLower(strings.TrimSpace(selection))
	if f, ok := c.byName[family][sel]; ok {
		return f, nil
	}

	if n, err := strconv.Atoi(sel); err == nil && n >= 1 && n <= len(fields) {
		return fields[n-1], nil
	}

	return Field{}, fmt.Errorf("%w: %q in %s", ErrUnknownField, selection, family)
}

// ParseFamily validates a family name against the catalog.
func (c *Catalog) ParseFamily(name string) (Family, error) {
	family := Family(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := c.tables[family]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFamily, name)
	}
	return family, nil
}
