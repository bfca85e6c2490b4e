package methods

import (
	"fmt"
	"strings"

	"github.com/GrainArc/GeoEdit/models"
	"gorm.io/datatypes"
)

const SchemaDialect = "https://json-schema.org/draft/2020-12/schema"

var fieldTypes = []string{"string", "number", "integer", "boolean"}

// 保留字段由服务端维护
var reservedFields = []string{"id", "geometry"}

// BuildSchema 根据字段定义生成集合的 JSON Schema，嵌套对象放入 $defs 并用 $ref 引用
func BuildSchema(title string, fields []models.FieldDef) (datatypes.JSON, error) {
	for _, f := range fields {
		head, _, _ := strings.Cut(f.Name, ".")
		if IsStringInSlice(head, reservedFields) {
			return nil, fmt.Errorf("field %q: reserved name", f.Name)
		}
	}
	defs := make(map[string]any)
	props, err := objectProperties(fields, "", defs)
	if err != nil {
		return nil, err
	}
	props["id"] = map[string]any{"type": "string", "readOnly": true, "x-ogc-role": "id"}
	props["geometry"] = map[string]any{"format": "geometry-any", "x-ogc-role": "primary-geometry"}

	doc := map[string]any{
		"$schema":    SchemaDialect,
		"type":       "object",
		"title":      title,
		"properties": props,
	}
	if len(defs) > 0 {
		doc["$defs"] = defs
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	return data, nil
}

func objectProperties(fields []models.FieldDef, prefix string, defs map[string]any) (map[string]any, error) {
	props := make(map[string]any)
	// 按首段分组，保留出现顺序
	var order []string
	nested := make(map[string][]models.FieldDef)
	for _, f := range fields {
		head, rest, isNested := strings.Cut(f.Name, ".")
		if head == "" || (isNested && rest == "") {
			return nil, fmt.Errorf("field %q: empty name segment", prefix+f.Name)
		}
		_, scalar := props[head]
		_, object := nested[head]
		if !isNested {
			if scalar || object {
				return nil, fmt.Errorf("field %q declared twice", prefix+head)
			}
			prop, err := scalarProperty(f)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", prefix+head, err)
			}
			props[head] = prop
			continue
		}
		if scalar {
			return nil, fmt.Errorf("field %q declared twice", prefix+head)
		}
		if !object {
			order = append(order, head)
		}
		nested[head] = append(nested[head], models.FieldDef{Name: rest, Type: f.Type, Title: f.Title})
	}
	for _, head := range order {
		sub, err := objectProperties(nested[head], prefix+head+".", defs)
		if err != nil {
			return nil, err
		}
		name := strings.ReplaceAll(prefix+head, ".", "_")
		defs[name] = map[string]any{"type": "object", "properties": sub}
		props[head] = map[string]any{"$ref": "#/$defs/" + name}
	}
	return props, nil
}

func scalarProperty(f models.FieldDef) (map[string]any, error) {
	typ := f.Type
	if typ == "" {
		typ = "string"
	}
	if !IsStringInSlice(typ, fieldTypes) {
		return nil, fmt.Errorf("unsupported type %q", typ)
	}
	prop := map[string]any{"type": typ}
	if f.Title != "" {
		prop["title"] = f.Title
	}
	return prop, nil
}
