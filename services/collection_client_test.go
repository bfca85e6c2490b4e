package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type captured struct {
	method string
	path   string
	header http.Header
	body   []byte
}

type recorder struct {
	mu   sync.Mutex
	reqs []captured
}

func (r *recorder) all() []captured {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]captured(nil), r.reqs...)
}

func newServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*CollectionClient, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.reqs = append(rec.reqs, captured{method: r.Method, path: r.URL.Path, header: r.Header.Clone(), body: body})
		rec.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewCollectionClient(srv.URL+"/", srv.Client(), nil), rec
}

func TestFetchOneCapturesETag(t *testing.T) {
	c, rec := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", ContentTypeGeoJSON)
		io.WriteString(w, `{"type":"Feature","id":"F1","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"name":"Main St"}}`)
	})
	f, etag, err := c.FetchOne(context.Background(), "roads", "F1")
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, etag)
	assert.Equal(t, "F1", f.ID)
	assert.Equal(t, "Main St", f.Properties["name"])
	assert.Equal(t, orb.Point{1, 2}, f.Geometry)

	reqs := rec.all()
	require.Len(t, reqs, 1)
	r := reqs[0]
	assert.Equal(t, "/collections/roads/items/F1", r.path)
	assert.Contains(t, r.header.Get("Accept"), ContentTypeGeoJSON)
	assert.NotEmpty(t, r.header.Get(HeaderRequestID))
}

func TestReplaceSendsIfMatchOnlyWithETag(t *testing.T) {
	c, rec := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v2"`)
	})
	f := geojson.NewFeature(orb.Point{0, 0})
	f.ID = "F1"

	etag, err := c.Replace(context.Background(), "roads", "F1", f, `"v1"`)
	require.NoError(t, err)
	assert.Equal(t, `"v2"`, etag)
	_, err = c.Replace(context.Background(), "roads", "F1", f, "")
	require.NoError(t, err)

	reqs := rec.all()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodPut, reqs[0].method)
	assert.Equal(t, `"v1"`, reqs[0].header.Get("If-Match"))
	assert.Empty(t, reqs[1].header.Values("If-Match"))
	assert.Equal(t, ContentTypeGeoJSON, reqs[0].header.Get("Content-Type"))
}

func TestCreateReadsIDFromBodyOrLocation(t *testing.T) {
	var calls atomic.Int32
	c, rec := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"type":"Feature","id":"N1","geometry":null,"properties":{}}`)
			return
		}
		w.Header().Set("Location", "/collections/roads/items/N2")
		w.WriteHeader(http.StatusCreated)
	})
	f := geojson.NewFeature(orb.Point{3, 4})

	id, err := c.Create(context.Background(), "roads", f)
	require.NoError(t, err)
	assert.Equal(t, "N1", id)
	id, err = c.Create(context.Background(), "roads", f)
	require.NoError(t, err)
	assert.Equal(t, "N2", id)

	reqs := rec.all()
	body := reqs[0].body
	assert.Equal(t, "/collections/roads/items", reqs[0].path)
	assert.False(t, gjson.GetBytes(body, "id").Exists())
	assert.Equal(t, "Point", gjson.GetBytes(body, "geometry.type").String())
}

func TestDeleteHasNoPrecondition(t *testing.T) {
	c, rec := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.Delete(context.Background(), "roads", "F1"))
	reqs := rec.all()
	assert.Equal(t, http.MethodDelete, reqs[0].method)
	assert.Empty(t, reqs[0].header.Values("If-Match"))
	assert.Empty(t, reqs[0].body)
}

func TestFailureMessages(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail", http.StatusPreconditionFailed, `{"detail":"stale ETag"}`, "stale ETag"},
		{"no body", http.StatusInternalServerError, ``, "500 Internal Server Error"},
		{"not json", http.StatusBadGateway, `<html>oops</html>`, "502 Bad Gateway"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})
			_, err := c.Replace(context.Background(), "roads", "F1", geojson.NewFeature(orb.Point{}), `"v1"`)
			require.Error(t, err)
			assert.Equal(t, tc.want, Message(err))
			var ne *NetworkError
			require.True(t, errors.As(err, &ne))
			assert.Equal(t, tc.status, ne.Status)
		})
	}
}

func TestConflictIsAPlainNetworkError(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
	})
	err := c.Delete(context.Background(), "roads", "F1")
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewCollectionClient(srv.URL, nil, nil)
	_, _, err := c.FetchOne(context.Background(), "roads", "F1")
	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Zero(t, ne.Status)
	assert.NotEmpty(t, ne.Message())
}

func TestListFollowsNextLinks(t *testing.T) {
	c, rec := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "" {
			io.WriteString(w, `{"type":"FeatureCollection","features":[{"type":"Feature","id":"a","geometry":{"type":"Point","coordinates":[0,0]},"properties":{}}],
				"links":[{"rel":"next","href":"collections/roads/items?offset=1"}]}`)
			return
		}
		io.WriteString(w, `{"type":"FeatureCollection","features":[{"type":"Feature","id":"b","geometry":{"type":"Point","coordinates":[1,1]},"properties":{}}],"links":[]}`)
	})
	fc, err := c.List(context.Background(), "roads")
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "b", fc.Features[1].ID)
	reqs := rec.all()
	assert.Len(t, reqs, 2)
}

func TestCollections(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"collections":[{"id":"roads","title":"Roads","storageCrs":"http://www.opengis.net/def/crs/EPSG/0/3857"},{"id":"poi"}]}`)
	})
	cols, err := c.Collections(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "Roads", cols[0].Label)
	assert.Equal(t, "poi", cols[1].Label)
}
