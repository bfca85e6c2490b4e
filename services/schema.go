// services/schema.go
package services

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/GrainArc/GeoEdit/models"
	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const maxRefDepth = 16

var (
	ErrInvalidSchema = errors.New("invalid schema")
	errRefDepth      = errors.New("$ref nesting too deep")
	errRefCycle      = errors.New("recursive $ref")
)

// ParseSchema flattens a JSON Schema into editable property paths. $ref
// pointers into $defs or definitions are resolved. Arrays, read-only
// properties and geometry or id roles are left out, as are fragments
// that cannot be understood; those are logged.
func ParseSchema(collection string, data []byte, logger *slog.Logger) (*models.CollectionDescriptor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s: %w", collection, ErrInvalidSchema)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%s: %w: not an object", collection, ErrInvalidSchema)
	}
	p := &schemaParser{root: root, title: cases.Title(language.Und), logger: logger.With("collection", collection)}
	d := &models.CollectionDescriptor{
		ID:         collection,
		Label:      root.Get("title").String(),
		Properties: map[string]models.PropertySpec{},
	}
	if d.Label == "" {
		d.Label = collection
	}
	p.walk(root, "", d.Properties, map[string]bool{})
	return d, nil
}

// schemaParser is used by one goroutine; cases.Caser is stateful.
type schemaParser struct {
	root   gjson.Result
	title  cases.Caser
	logger *slog.Logger
}

// walk collects leaf properties of node. expanding holds the $ref targets
// already being expanded on the current path.
func (p *schemaParser) walk(node gjson.Result, prefix string, out map[string]models.PropertySpec, expanding map[string]bool) {
	node.Get("properties").ForEach(func(k, v gjson.Result) bool {
		name := k.String()
		full := name
		if prefix != "" {
			full = prefix + "." + name
		}
		prop, refs, err := p.deref(v, expanding)
		if err != nil {
			p.logger.Warn("schema property skipped", "path", full, "error", err)
			return true
		}
		if prop.Get("readOnly").Bool() {
			return true
		}
		switch prop.Get("x-ogc-role").String() {
		case "id", "primary-geometry", "secondary-geometry":
			return true
		}
		if strings.HasPrefix(prop.Get("format").String(), "geometry-") {
			return true
		}
		switch typ := schemaType(prop); typ {
		case "array":
			p.logger.Debug("array property not editable", "path", full)
		case "object":
			for _, r := range refs {
				expanding[r] = true
			}
			p.walk(prop, full, out, expanding)
			for _, r := range refs {
				delete(expanding, r)
			}
		case "string", "number", "integer", "boolean":
			title := prop.Get("title").String()
			if title == "" {
				title = v.Get("title").String()
			}
			if title == "" {
				title = p.title.String(strings.ReplaceAll(name, "_", " "))
			}
			out[full] = models.PropertySpec{Type: typ, Title: title}
		default:
			p.logger.Debug("unsupported property type", "path", full, "type", typ)
		}
		return true
	})
}

// deref follows $ref until it reaches a schema without one and returns the
// references it passed through.
func (p *schemaParser) deref(node gjson.Result, expanding map[string]bool) (gjson.Result, []string, error) {
	var refs []string
	for {
		ref := node.Get("$ref")
		if !ref.Exists() {
			return node, refs, nil
		}
		r := ref.String()
		if expanding[r] || slices.Contains(refs, r) {
			return gjson.Result{}, nil, fmt.Errorf("%w %q", errRefCycle, r)
		}
		if len(refs) >= maxRefDepth {
			return gjson.Result{}, nil, errRefDepth
		}
		target := p.root.Get(pointerPath(r))
		if !target.Exists() {
			return gjson.Result{}, nil, fmt.Errorf("unresolved $ref %q", r)
		}
		refs = append(refs, r)
		node = target
	}
}

// pointerPath converts a local JSON pointer ("#/$defs/a~1b") to a gjson
// path. Remote references resolve to a path that never matches.
func pointerPath(ref string) string {
	if !strings.HasPrefix(ref, "#/") {
		return "\x00"
	}
	segs := strings.Split(strings.TrimPrefix(ref, "#/"), "/")
	for i, s := range segs {
		s = strings.ReplaceAll(s, "~1", "/")
		s = strings.ReplaceAll(s, "~0", "~")
		segs[i] = gjsonEscape(s)
	}
	return strings.Join(segs, ".")
}

func gjsonEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// schemaType picks the non-null type; a missing type with an enum is a
// string, with properties an object.
func schemaType(prop gjson.Result) string {
	t := prop.Get("type")
	if t.IsArray() {
		for _, x := range t.Array() {
			if x.String() != "null" {
				return x.String()
			}
		}
		return ""
	}
	if t.Exists() {
		return t.String()
	}
	switch {
	case prop.Get("properties").Exists():
		return "object"
	case prop.Get("enum").Exists():
		return "string"
	}
	return ""
}
