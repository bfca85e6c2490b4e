package store

import (
	"crypto/md5"
	"encoding/hex"
	"reflect"

	jsoniter "github.com/json-iterator/go"
)

// canonical sorts map keys so equal fingerprints hash equally.
var canonical = jsoniter.ConfigCompatibleWithStandardLibrary

// AnyKey is implemented by every Key[T]; it lets one observer subscribe to
// keys of different value types.
type AnyKey interface {
	Name() string
	def() *keyDef
}

type keyDef struct {
	name        string
	zero        any
	fingerprint func(any) any
}

// Key names a slot in a Store holding values of type T.
type Key[T any] struct {
	d *keyDef
}

// NewKey declares a key whose change detection is strict inequality.
func NewKey[T comparable](name string) Key[T] {
	var zero T
	return Key[T]{d: &keyDef{name: name, zero: zero}}
}

// NewKeyFunc declares a key compared through a fingerprint: the
// fingerprint of the new value is hashed and compared with the hash stored
// for the previous one. Use it for values that mutate in place (geometries
// carrying a revision counter) or that are not comparable (maps).
func NewKeyFunc[T any](name string, fingerprint func(T) any) Key[T] {
	var zero T
	return Key[T]{d: &keyDef{
		name: name,
		zero: zero,
		fingerprint: func(v any) any {
			t, _ := v.(T)
			return fingerprint(t)
		},
	}}
}

func (k Key[T]) Name() string { return k.d.name }
func (k Key[T]) def() *keyDef { return k.d }

func (d *keyDef) hash(v any) string {
	data, err := canonical.Marshal(d.fingerprint(v))
	if err != nil {
		// unhashable fingerprints always count as a change
		return ""
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// empty reports whether v counts as absent: the zero value, or an empty
// map or slice.
func empty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		return rv.Len() == 0
	}
	return rv.IsZero()
}
