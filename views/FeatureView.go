package views

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/GrainArc/GeoEdit/methods"
	"github.com/GrainArc/GeoEdit/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

var errStale = errors.New("stale ETag")

// FeatureController 集合要素的增删改查
type FeatureController struct {
	DB     *gorm.DB
	Hub    *ChangeHub
	Logger *slog.Logger
	// PageSize 未指定 limit 时每页要素数
	PageSize int
}

func NewFeatureController(db *gorm.DB, hub *ChangeHub, logger *slog.Logger) *FeatureController {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeatureController{DB: db, Hub: hub, Logger: logger, PageSize: DefaultLimit}
}

type link struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href"`
}

type collectionInfo struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	StorageCrs string `json:"storageCrs"`
	Links      []link `json:"links"`
}

func describe(row models.CollectionRow) collectionInfo {
	base := "collections/" + url.PathEscape(row.ID)
	return collectionInfo{
		ID:         row.ID,
		Title:      row.Title,
		StorageCrs: row.CRS,
		Links: []link{
			{Rel: "items", Type: ContentTypeGeoJSON, Href: base + "/items"},
			{Rel: "http://www.opengis.net/def/rel/ogc/1.0/schema", Type: ContentTypeSchema, Href: base + "/schemas/replace"},
		},
	}
}

// ListCollections GET /collections
func (fc *FeatureController) ListCollections(c *gin.Context) {
	var rows []models.CollectionRow
	if err := fc.DB.Order("id").Find(&rows).Error; err != nil {
		problem(c, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]collectionInfo, 0, len(rows))
	for _, row := range rows {
		out = append(out, describe(row))
	}
	c.JSON(http.StatusOK, gin.H{"collections": out, "links": []link{}})
}

// GetCollection GET /collections/:collectionId
func (fc *FeatureController) GetCollection(c *gin.Context) {
	row, ok := fc.collection(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, describe(*row))
}

// GetSchema GET /collections/:collectionId/schemas/replace
func (fc *FeatureController) GetSchema(c *gin.Context) {
	row, ok := fc.collection(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, ContentTypeSchema, row.Schema)
}

// ListItems GET /collections/:collectionId/items?limit=&offset=
func (fc *FeatureController) ListItems(c *gin.Context) {
	row, ok := fc.collection(c)
	if !ok {
		return
	}
	limit := queryInt(c, "limit", fc.PageSize)
	if limit == 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	offset := queryInt(c, "offset", 0)

	// 多取一条用于判断是否有下一页
	var rows []models.FeatureRow
	err := fc.DB.Where("collection = ?", row.ID).Order("id").Limit(limit + 1).Offset(offset).Find(&rows).Error
	if err != nil {
		problem(c, http.StatusInternalServerError, err.Error())
		return
	}
	more := len(rows) > limit
	if more {
		rows = rows[:limit]
	}
	out, err := methods.MakeFeatureCollection(rows)
	if err != nil {
		problem(c, http.StatusInternalServerError, err.Error())
		return
	}
	links := []link{}
	if more {
		links = append(links, link{
			Rel:  "next",
			Type: ContentTypeGeoJSON,
			Href: fmt.Sprintf("collections/%s/items?limit=%d&offset=%d", url.PathEscape(row.ID), limit, offset+limit),
		})
	}
	out.ExtraMembers = geojson.Properties{"links": links, "numberReturned": len(rows)}
	body, err := out.MarshalJSON()
	if err != nil {
		problem(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, ContentTypeGeoJSON, body)
}

// GetItem GET /collections/:collectionId/items/:featureId
func (fc *FeatureController) GetItem(c *gin.Context) {
	coll, ok := fc.collection(c)
	if !ok {
		return
	}
	var row models.FeatureRow
	err := fc.DB.Where("collection = ? AND id = ?", coll.ID, c.Param("featureId")).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		problem(c, http.StatusNotFound, "feature not found")
		return
	}
	if err != nil {
		problem(c, http.StatusInternalServerError, err.Error())
		return
	}
	f, err := methods.RowToFeature(&row)
	if err != nil {
		problem(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Header("ETag", methods.FeatureETag(&row))
	writeFeature(c, http.StatusOK, f)
}

// CreateItem POST /collections/:collectionId/items，id 由服务端分配
func (fc *FeatureController) CreateItem(c *gin.Context) {
	coll, ok := fc.collection(c)
	if !ok {
		return
	}
	f, ok := readFeature(c)
	if !ok {
		return
	}
	id := uuid.NewString()
	row, err := methods.FeatureToRow(coll.ID, id, f, 1)
	if err != nil {
		problem(c, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := methods.RowToFeature(row)
	if err != nil {
		problem(c, http.StatusInternalServerError, err.Error())
		return
	}
	err = fc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		return fc.record(tx, c, models.RecordCreate, coll.ID, id, nil, saved)
	})
	if err != nil {
		problem(c, http.StatusInternalServerError, err.Error())
		return
	}
	fc.publish(c, models.RecordCreate, coll.ID, id, row.Version)

	c.Header("Location", c.Request.URL.Path+"/"+url.PathEscape(id))
	c.Header("ETag", methods.FeatureETag(row))
	writeFeature(c, http.StatusCreated, saved)
}

// ReplaceItem PUT /collections/:collectionId/items/:featureId
// 带 If-Match 时按强 ETag 校验，不匹配返回 412
func (fc *FeatureController) ReplaceItem(c *gin.Context) {
	coll, ok := fc.collection(c)
	if !ok {
		return
	}
	f, ok := readFeature(c)
	if !ok {
		return
	}
	id := c.Param("featureId")
	ifMatch := c.GetHeader("If-Match")

	var row *models.FeatureRow
	var saved *geojson.Feature
	err := fc.DB.Transaction(func(tx *gorm.DB) error {
		var cur models.FeatureRow
		if err := tx.Where("collection = ? AND id = ?", coll.ID, id).First(&cur).Error; err != nil {
			return err
		}
		if ifMatch != "" && !methods.MatchETag(ifMatch, methods.FeatureETag(&cur)) {
			return errStale
		}
		old, err := methods.RowToFeature(&cur)
		if err != nil {
			return err
		}
		if row, err = methods.FeatureToRow(coll.ID, id, f, cur.Version+1); err != nil {
			return err
		}
		if saved, err = methods.RowToFeature(row); err != nil {
			return err
		}
		// 版本号作为乐观锁，防止并发写覆盖
		res := tx.Model(&models.FeatureRow{}).
			Where("collection = ? AND id = ? AND version = ?", coll.ID, id, cur.Version).
			Updates(map[string]interface{}{
				"geom":       row.Geom,
				"properties": row.Properties,
				"version":    row.Version,
				"updated_at": row.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStale
		}
		return fc.record(tx, c, models.RecordReplace, coll.ID, id, old, saved)
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		problem(c, http.StatusNotFound, "feature not found")
		return
	case errors.Is(err, errStale):
		problem(c, http.StatusPreconditionFailed, errStale.Error())
		return
	case errors.Is(err, methods.ErrNoGeometry):
		problem(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		problem(c, http.StatusInternalServerError, err.Error())
		return
	}
	fc.publish(c, models.RecordReplace, coll.ID, id, row.Version)

	c.Header("ETag", methods.FeatureETag(row))
	writeFeature(c, http.StatusOK, saved)
}

// DeleteItem DELETE /collections/:collectionId/items/:featureId
func (fc *FeatureController) DeleteItem(c *gin.Context) {
	coll, ok := fc.collection(c)
	if !ok {
		return
	}
	id := c.Param("featureId")
	err := fc.DB.Transaction(func(tx *gorm.DB) error {
		var cur models.FeatureRow
		if err := tx.Where("collection = ? AND id = ?", coll.ID, id).First(&cur).Error; err != nil {
			return err
		}
		old, err := methods.RowToFeature(&cur)
		if err != nil {
			return err
		}
		if err := tx.Where("collection = ? AND id = ?", coll.ID, id).Delete(&models.FeatureRow{}).Error; err != nil {
			return err
		}
		return fc.record(tx, c, models.RecordDelete, coll.ID, id, old, nil)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		problem(c, http.StatusNotFound, "feature not found")
		return
	}
	if err != nil {
		problem(c, http.StatusInternalServerError, err.Error())
		return
	}
	fc.publish(c, models.RecordDelete, coll.ID, id, 0)
	c.Status(http.StatusNoContent)
}

// ListRecords GET /collections/:collectionId/records，最新的修改记录在前
func (fc *FeatureController) ListRecords(c *gin.Context) {
	coll, ok := fc.collection(c)
	if !ok {
		return
	}
	q := fc.DB.Where("collection = ?", coll.ID)
	if id := c.Query("featureId"); id != "" {
		q = q.Where("feature_id = ?", id)
	}
	var records []models.GeoRecord
	if err := q.Order("id desc").Limit(queryInt(c, "limit", DefaultLimit)).Find(&records).Error; err != nil {
		problem(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// Changes GET /collections/:collectionId/changes，WebSocket 推送
func (fc *FeatureController) Changes(c *gin.Context) {
	coll, ok := fc.collection(c)
	if !ok {
		return
	}
	fc.Hub.Serve(c.Writer, c.Request, coll.ID)
}

func (fc *FeatureController) collection(c *gin.Context) (*models.CollectionRow, bool) {
	var row models.CollectionRow
	err := fc.DB.Where("id = ?", c.Param("collectionId")).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		problem(c, http.StatusNotFound, "collection not found")
		return nil, false
	}
	if err != nil {
		problem(c, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return &row, true
}

func readFeature(c *gin.Context) (*geojson.Feature, bool) {
	body, err := c.GetRawData()
	if err != nil {
		problem(c, http.StatusBadRequest, err.Error())
		return nil, false
	}
	f, err := geojson.UnmarshalFeature(body)
	if err != nil {
		problem(c, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if f.Geometry == nil {
		problem(c, http.StatusBadRequest, methods.ErrNoGeometry.Error())
		return nil, false
	}
	return f, true
}

// record 写入修改记录
func (fc *FeatureController) record(tx *gorm.DB, c *gin.Context, typ, collection, id string, before, after *geojson.Feature) error {
	result := models.GeoRecord{
		Collection: collection,
		FeatureID:  id,
		Type:       typ,
		Date:       time.Now().Format("2006-01-02 15:04:05"),
		RequestID:  c.GetHeader(HeaderRequestID),
	}
	var err error
	if before != nil {
		if result.OldGeojson, err = featureJSON(before); err != nil {
			return err
		}
	}
	if after != nil {
		if result.NewGeojson, err = featureJSON(after); err != nil {
			return err
		}
	}
	return tx.Create(&result).Error
}

func (fc *FeatureController) publish(c *gin.Context, typ, collection, id string, version int64) {
	reqID := c.GetHeader(HeaderRequestID)
	fc.Logger.Info("feature written", "type", typ, "collection", collection, "id", id, "version", version, "request_id", reqID)
	if fc.Hub != nil {
		fc.Hub.Publish(models.ChangeEvent{Type: typ, Collection: collection, ID: id, Version: version, RequestID: reqID})
	}
}

func featureJSON(f *geojson.Feature) (datatypes.JSON, error) {
	data, err := f.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
