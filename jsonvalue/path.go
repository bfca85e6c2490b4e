package jsonvalue

import "strings"

// Path addresses a member nested inside object values, outermost key
// first.
type Path []string

// ParsePath splits a dotted property path such as "address.street".
// Empty segments are dropped.
func ParsePath(s string) Path {
	parts := strings.Split(s, ".")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			p = append(p, part)
		}
	}
	return p
}

func (p Path) String() string { return strings.Join(p, ".") }

// Child returns a new path extended by key.
func (p Path) Child(key string) Path {
	c := make(Path, len(p), len(p)+1)
	copy(c, p)
	return append(c, key)
}

// Get walks v along p.
func Get(v Value, p Path) (Value, bool) {
	cur := v
	for _, k := range p {
		next, ok := cur.Field(k)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// Set returns a copy of v with x stored at p. Missing intermediate objects
// are created and non-object intermediates are replaced by objects; sibling
// keys along the path are preserved. v itself is never mutated.
func Set(v Value, p Path, x Value) Value {
	if len(p) == 0 {
		return x
	}
	var obj map[string]Value
	if v.kind == Object {
		obj = make(map[string]Value, len(v.obj)+1)
		for k, e := range v.obj {
			obj[k] = e
		}
	} else {
		obj = make(map[string]Value, 1)
	}
	obj[p[0]] = Set(obj[p[0]], p[1:], x)
	return Value{kind: Object, obj: obj}
}

// Merge overlays src onto dst. Objects merge recursively; every other
// combination takes src.
func Merge(dst, src Value) Value {
	if dst.kind != Object || src.kind != Object {
		return src
	}
	out := make(map[string]Value, len(dst.obj)+len(src.obj))
	for k, e := range dst.obj {
		out[k] = e
	}
	for k, e := range src.obj {
		if cur, ok := out[k]; ok {
			out[k] = Merge(cur, e)
		} else {
			out[k] = e
		}
	}
	return Value{kind: Object, obj: out}
}
