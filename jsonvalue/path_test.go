package jsonvalue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) Value {
	t.Helper()
	var v Value
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestParsePath(t *testing.T) {
	assert.Equal(t, Path{"a", "b", "c"}, ParsePath("a.b.c"))
	assert.Equal(t, Path{"name"}, ParsePath("name"))
	assert.Equal(t, Path{"a", "b"}, ParsePath(".a..b."))
	assert.Equal(t, "a.b", ParsePath("a.b").String())
}

func TestSetPreservesSiblings(t *testing.T) {
	base := decode(t, `{"a":{"b":1,"x":"keep"},"name":"Main St"}`)

	out := Set(base, ParsePath("a.b"), NumberValue(5))

	b, ok := Get(out, ParsePath("a.b"))
	require.True(t, ok)
	assert.Equal(t, float64(5), b.Number())
	x, ok := Get(out, ParsePath("a.x"))
	require.True(t, ok)
	assert.Equal(t, "keep", x.Str())
	name, _ := out.Field("name")
	assert.Equal(t, "Main St", name.Str())

	// the input is untouched
	orig, _ := Get(base, ParsePath("a.b"))
	assert.Equal(t, float64(1), orig.Number())
}

func TestSetCreatesIntermediates(t *testing.T) {
	out := Set(ObjectValue(nil), ParsePath("a.b.c"), StringValue("v"))
	assert.JSONEq(t, `{"a":{"b":{"c":"v"}}}`, mustJSON(t, out))

	// a scalar in the way is replaced by an object
	out = Set(decode(t, `{"a":3}`), ParsePath("a.b"), BoolValue(true))
	assert.JSONEq(t, `{"a":{"b":true}}`, mustJSON(t, out))
}

func TestMerge(t *testing.T) {
	dst := decode(t, `{"a":{"b":1,"c":2},"d":[1,2]}`)
	src := decode(t, `{"a":{"c":3},"d":[9]}`)
	assert.JSONEq(t, `{"a":{"b":1,"c":3},"d":[9]}`, mustJSON(t, Merge(dst, src)))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(decode(t, `{"a":[1,"x",null]}`), decode(t, `{"a":[1.0,"x",null]}`)))
	assert.False(t, Equal(NumberValue(1), StringValue("1")))
	assert.False(t, Equal(decode(t, `{"a":1}`), decode(t, `{"a":1,"b":2}`)))
	assert.True(t, Equal(FromAny(int64(7)), NumberValue(7)))
}

func TestStringRendering(t *testing.T) {
	assert.Equal(t, "5", NumberValue(5).String())
	assert.Equal(t, "2.5", NumberValue(2.5).String())
	assert.Equal(t, "", NullValue().String())
	assert.Equal(t, "true", BoolValue(true).String())
}

func mustJSON(t *testing.T, v Value) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
