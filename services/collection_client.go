// services/collection_client.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/GrainArc/GeoEdit/models"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/gjson"
)

const (
	ContentTypeGeoJSON = "application/geo+json"
	HeaderRequestID    = "X-Request-ID"

	maxBody  = 32 << 20
	maxPages = 1000
)

// Doer is the part of *http.Client the client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CollectionClient talks to an OGC API Features style collection
// resource: {base}/collections/{collectionId}/items[/{id}].
type CollectionClient struct {
	base   string
	doer   Doer
	logger *slog.Logger
}

func NewCollectionClient(baseURL string, doer Doer, logger *slog.Logger) *CollectionClient {
	if doer == nil {
		doer = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CollectionClient{base: strings.TrimRight(baseURL, "/"), doer: doer, logger: logger}
}

func (c *CollectionClient) itemsURL(collection string) string {
	return c.base + "/collections/" + url.PathEscape(collection) + "/items"
}

func (c *CollectionClient) itemURL(collection, id string) string {
	return c.itemsURL(collection) + "/" + url.PathEscape(id)
}

// response is a fully read reply.
type response struct {
	status int
	header http.Header
	body   []byte
}

func (c *CollectionClient) do(ctx context.Context, op, method, target string, body []byte, header http.Header) (*response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rid := uuid.NewString()
	req.Header.Set(HeaderRequestID, rid)

	resp, err := c.doer.Do(req)
	if err != nil {
		c.logger.Warn("collection request failed", "op", op, "url", target, "request_id", rid, "error", err)
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &NetworkError{Op: op, Status: resp.StatusCode, Err: err}
	}
	c.logger.Debug("collection request", "op", op, "method", method, "url", target, "status", resp.StatusCode, "request_id", rid)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(op, resp, data)
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func geoJSONHeader(withBody bool) http.Header {
	h := http.Header{}
	h.Set("Accept", ContentTypeGeoJSON+", application/json;q=0.9")
	if withBody {
		h.Set("Content-Type", ContentTypeGeoJSON)
	}
	return h
}

// FetchOne returns the server copy of a feature and its ETag, which is
// empty when the server sent none.
func (c *CollectionClient) FetchOne(ctx context.Context, collection, id string) (*geojson.Feature, string, error) {
	const op = "fetch feature"
	resp, err := c.do(ctx, op, http.MethodGet, c.itemURL(collection, id), nil, geoJSONHeader(false))
	if err != nil {
		return nil, "", err
	}
	f, err := geojson.UnmarshalFeature(resp.body)
	if err != nil {
		return nil, "", &NetworkError{Op: op, Status: resp.status, Err: fmt.Errorf("%w: %v", ErrInvalidResponse, err)}
	}
	if f.ID == nil {
		f.ID = id
	}
	return f, resp.header.Get("ETag"), nil
}

// Create posts a new feature and returns the id the server assigned, taken
// from the response body or, failing that, the Location header. The id is
// empty when the server reported neither.
func (c *CollectionClient) Create(ctx context.Context, collection string, f *geojson.Feature) (string, error) {
	const op = "create feature"
	body, err := f.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.do(ctx, op, http.MethodPost, c.itemsURL(collection), body, geoJSONHeader(true))
	if err != nil {
		return "", err
	}
	if id := gjson.GetBytes(resp.body, "id"); id.Exists() && gjson.ValidBytes(resp.body) {
		return id.String(), nil
	}
	if loc := resp.header.Get("Location"); loc != "" {
		if u, err := url.Parse(loc); err == nil {
			return path.Base(u.Path), nil
		}
	}
	return "", nil
}

// Replace puts f over the feature at id. etag, when non-empty, is sent as
// If-Match; the new ETag from the response is returned.
func (c *CollectionClient) Replace(ctx context.Context, collection, id string, f *geojson.Feature, etag string) (string, error) {
	const op = "replace feature"
	body, err := f.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	h := geoJSONHeader(true)
	if etag != "" {
		h.Set("If-Match", etag)
	}
	resp, err := c.do(ctx, op, http.MethodPut, c.itemURL(collection, id), body, h)
	if err != nil {
		return "", err
	}
	return resp.header.Get("ETag"), nil
}

// Delete removes the feature. No precondition is sent.
func (c *CollectionClient) Delete(ctx context.Context, collection, id string) error {
	_, err := c.do(ctx, "delete feature", http.MethodDelete, c.itemURL(collection, id), nil, nil)
	return err
}

// FetchSchema loads the replace schema of a collection and flattens it into
// editable property paths.
func (c *CollectionClient) FetchSchema(ctx context.Context, collection string) (*models.CollectionDescriptor, error) {
	h := http.Header{}
	h.Set("Accept", "application/schema+json, application/json;q=0.9")
	target := c.base + "/collections/" + url.PathEscape(collection) + "/schemas/replace"
	resp, err := c.do(ctx, "fetch schema", http.MethodGet, target, nil, h)
	if err != nil {
		return nil, err
	}
	return ParseSchema(collection, resp.body, c.logger)
}

// Collections lists the collections the server offers. Properties are not
// filled in; use FetchSchema for those.
func (c *CollectionClient) Collections(ctx context.Context) ([]models.CollectionDescriptor, error) {
	const op = "list collections"
	h := http.Header{}
	h.Set("Accept", "application/json")
	resp, err := c.do(ctx, op, http.MethodGet, c.base+"/collections", nil, h)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(resp.body) {
		return nil, &NetworkError{Op: op, Status: resp.status, Err: ErrInvalidResponse}
	}
	var out []models.CollectionDescriptor
	gjson.GetBytes(resp.body, "collections").ForEach(func(_, v gjson.Result) bool {
		d := models.CollectionDescriptor{
			ID:    v.Get("id").String(),
			Label: v.Get("title").String(),
			CRS:   v.Get("storageCrs").String(),
		}
		if d.Label == "" {
			d.Label = d.ID
		}
		if d.ID != "" {
			out = append(out, d)
		}
		return true
	})
	return out, nil
}

// List reads every feature of a collection, following next links.
func (c *CollectionClient) List(ctx context.Context, collection string) (*geojson.FeatureCollection, error) {
	const op = "list features"
	all := geojson.NewFeatureCollection()
	next := c.itemsURL(collection)
	for page := 0; next != "" && page < maxPages; page++ {
		resp, err := c.do(ctx, op, http.MethodGet, next, nil, geoJSONHeader(false))
		if err != nil {
			return nil, err
		}
		fc, err := geojson.UnmarshalFeatureCollection(resp.body)
		if err != nil {
			return nil, &NetworkError{Op: op, Status: resp.status, Err: fmt.Errorf("%w: %v", ErrInvalidResponse, err)}
		}
		all.Features = append(all.Features, fc.Features...)
		next = ""
		gjson.GetBytes(resp.body, "links").ForEach(func(_, l gjson.Result) bool {
			if l.Get("rel").String() == "next" {
				next = c.resolve(l.Get("href").String())
				return false
			}
			return true
		})
	}
	return all, nil
}

func (c *CollectionClient) resolve(href string) string {
	if href == "" {
		return ""
	}
	base, err := url.Parse(c.base + "/")
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
