// models/field.go
package models

import "sort"

// PropertySpec describes one editable property of a collection.
type PropertySpec struct {
	Type  string `json:"type" yaml:"type"`   // string, number, integer, boolean
	Title string `json:"title" yaml:"title"` // label shown in the edit panel
}

// CollectionDescriptor is what the editor knows about one collection.
// Properties is keyed by dotted property path.
type CollectionDescriptor struct {
	ID         string                  `json:"id"`
	Label      string                  `json:"label"`
	Properties map[string]PropertySpec `json:"properties"`
	CRS        string                  `json:"crs"`
}

// Paths returns the editable property paths in display order: top-level
// properties first, then nested ones, each group alphabetical.
func (c *CollectionDescriptor) Paths() []string {
	paths := make([]string, 0, len(c.Properties))
	for p := range c.Properties {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		di, dj := depth(paths[i]), depth(paths[j])
		if di != dj {
			return di < dj
		}
		return paths[i] < paths[j]
	})
	return paths
}

func depth(path string) int {
	n := 0
	for _, r := range path {
		if r == '.' {
			n++
		}
	}
	return n
}

// FieldDef declares one property of a served collection. Nested objects
// use dotted names, e.g. "address.street".
type FieldDef struct {
	Name  string `xml:"name,attr" yaml:"name"`
	Type  string `xml:"type,attr" yaml:"type"`
	Title string `xml:"title,attr" yaml:"title"`
}
