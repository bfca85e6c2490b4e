package methods

import (
	"errors"
	"fmt"
	"time"

	"github.com/GrainArc/GeoEdit/models"
	jsoniter "github.com/json-iterator/go"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func init() {
	geojson.CustomJSONMarshaler = json
	geojson.CustomJSONUnmarshaler = json
}

var ErrNoGeometry = errors.New("feature has no geometry")

// FeatureToRow 要素转为入库记录，几何按 WKB 原样保存，不做类型转换
func FeatureToRow(collection, id string, f *geojson.Feature, version int64) (*models.FeatureRow, error) {
	if f.Geometry == nil {
		return nil, ErrNoGeometry
	}
	geom, err := wkb.Marshal(f.Geometry)
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	props := f.Properties
	if props == nil {
		props = geojson.Properties{}
	}
	attr, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("encode properties: %w", err)
	}
	return &models.FeatureRow{
		Collection: collection,
		ID:         id,
		Geom:       geom,
		Properties: attr,
		Version:    version,
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// RowToFeature 入库记录还原为要素
func RowToFeature(row *models.FeatureRow) (*geojson.Feature, error) {
	geom, err := wkb.Unmarshal(row.Geom)
	if err != nil {
		return nil, fmt.Errorf("decode geometry of %s: %w", row.ID, err)
	}
	f := geojson.NewFeature(geom)
	f.ID = row.ID
	if len(row.Properties) > 0 {
		if err := json.Unmarshal(row.Properties, &f.Properties); err != nil {
			return nil, fmt.Errorf("decode properties of %s: %w", row.ID, err)
		}
	}
	return f, nil
}

func MakeFeatureCollection(rows []models.FeatureRow) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for i := range rows {
		f, err := RowToFeature(&rows[i])
		if err != nil {
			return nil, err
		}
		fc.Append(f)
	}
	return fc, nil
}
