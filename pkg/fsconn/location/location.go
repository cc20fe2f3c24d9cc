// Package location describes where a file lives, independent of any live
// file system instance.
//
// A Location is the portable triple (category, specifier, path) that node
// settings persist. It carries no behavior beyond validation, equality and
// serialization; turning it into a usable path is the job of the provider
// package.
package location

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is the kind of storage a Location points into.
type Category int

const (
	// Local is the file system of the machine running the process.
	Local Category = iota
	// Relative is a path relative to the workflow, its mountpoint or its data area.
	Relative
	// Mountpoint is a path inside a named mountpoint.
	Mountpoint
	// Connected is a path inside a file system provided by a connector.
	Connected
	// CustomURL is a location given as a full URL.
	CustomURL
)

var categoryTags = map[Category]string{
	Local:      "LOCAL",
	Relative:   "RELATIVE",
	Mountpoint: "MOUNTPOINT",
	Connected:  "CONNECTED",
	CustomURL:  "CUSTOM_URL",
}

// String returns the serialized tag of the category.
func (c Category) String() string {
	if tag, ok := categoryTags[c]; ok {
		return tag
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// ParseCategory returns the category for a serialized tag. Tags are matched
// case-insensitively.
func ParseCategory(tag string) (Category, error) {
	upper := strings.ToUpper(strings.TrimSpace(tag))
	for c, t := range categoryTags {
		if t == upper {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown location category %q", tag)
}

// RequiresSpecifier reports whether locations of this category must carry a
// non-blank specifier.
func (c Category) RequiresSpecifier() bool {
	return c == Connected || c == CustomURL || c == Relative || c == Mountpoint
}

// RelativeTo is the specifier of a Relative location.
type RelativeTo string

const (
	RelativeToWorkflow     RelativeTo = "knime.workflow"
	RelativeToMountpoint   RelativeTo = "knime.mountpoint"
	RelativeToWorkflowData RelativeTo = "knime.workflow.data"
)

// ParseRelativeTo validates a Relative specifier.
func ParseRelativeTo(s string) (RelativeTo, error) {
	switch r := RelativeTo(s); r {
	case RelativeToWorkflow, RelativeToMountpoint, RelativeToWorkflowData:
		return r, nil
	}
	return "", fmt.Errorf("unknown relative-to specifier %q", s)
}

// Spec identifies a file system kind without a path (FSLocationSpec).
type Spec struct {
	Category  Category
	Specifier string
}

// String renders the spec as CATEGORY or CATEGORY:specifier.
func (s Spec) String() string {
	if s.Specifier == "" {
		return s.Category.String()
	}
	return s.Category.String() + ":" + s.Specifier
}

// Location is an immutable (category, specifier, path) triple (FSLocation).
// Two locations are equal when all three fields are equal, so Location values
// can be compared with == and used as map keys.
type Location struct {
	Category  Category
	Specifier string
	Path      string
}

// New creates a validated Location.
func New(category Category, specifier, path string) (Location, error) {
	loc := Location{Category: category, Specifier: specifier, Path: path}
	if err := loc.Validate(); err != nil {
		return Location{}, err
	}
	return loc, nil
}

// MustNew is like New but panics on invalid input. Intended for fixtures.
func MustNew(category Category, specifier, path string) Location {
	loc, err := New(category, specifier, path)
	if err != nil {
		panic(err)
	}
	return loc
}

// NewLocal creates a Local location for the given path.
func NewLocal(path string) Location {
	return Location{Category: Local, Path: path}
}

// Spec returns the category and specifier of the location.
func (l Location) Spec() Spec {
	return Spec{Category: l.Category, Specifier: l.Specifier}
}

// Validate checks the category/specifier invariants.
func (l Location) Validate() error {
	if _, ok := categoryTags[l.Category]; !ok {
		return &ValidationError{Location: l, Reason: "unknown category"}
	}
	blank := strings.TrimSpace(l.Specifier) == ""
	switch {
	case l.Category == Local && l.Specifier != "":
		return &ValidationError{Location: l, Reason: "local locations must not have a specifier"}
	case l.Category.RequiresSpecifier() && blank:
		return &ValidationError{Location: l, Reason: "specifier is required for " + l.Category.String()}
	case l.Category == Relative:
		if _, err := ParseRelativeTo(l.Specifier); err != nil {
			return &ValidationError{Location: l, Reason: err.Error()}
		}
	}
	return nil
}

func (l Location) String() string {
	return fmt.Sprintf("(%s, %s, %s)", l.Category, l.Specifier, l.Path)
}

// ValidationError reports a Location that violates the category invariants.
type ValidationError struct {
	Location Location
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid location %s: %s", e.Location, e.Reason)
}

// serialized is the persisted form of a Location.
type serialized struct {
	Category  string `json:"category" yaml:"category"`
	Specifier string `json:"specifier,omitempty" yaml:"specifier,omitempty"`
	Path      string `json:"path" yaml:"path"`
}

func (l Location) toSerialized() serialized {
	return serialized{Category: l.Category.String(), Specifier: l.Specifier, Path: l.Path}
}

func (s serialized) toLocation() (Location, error) {
	c, err := ParseCategory(s.Category)
	if err != nil {
		return Location{}, err
	}
	return New(c, s.Specifier, s.Path)
}

// MarshalJSON implements json.Marshaler.
func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.toSerialized())
}

// UnmarshalJSON implements json.Unmarshaler and re-validates the triple.
func (l *Location) UnmarshalJSON(data []byte) error {
	var s serialized
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	loc, err := s.toLocation()
	if err != nil {
		return err
	}
	*l = loc
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (l Location) MarshalYAML() (interface{}, error) {
	return l.toSerialized(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler (the func-based v2/v3 form).
func (l *Location) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s serialized
	if err := unmarshal(&s); err != nil {
		return err
	}
	loc, err := s.toLocation()
	if err != nil {
		return err
	}
	*l = loc
	return nil
}
