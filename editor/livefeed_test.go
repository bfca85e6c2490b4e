package editor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GrainArc/GeoEdit/mapkit"
	"github.com/GrainArc/GeoEdit/models"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangesURL(t *testing.T) {
	u, err := changesURL("https://example.com/api/", "roads")
	require.NoError(t, err)
	assert.Equal(t, "wss://example.com/api/collections/roads/changes", u)
	u, err = changesURL("http://localhost:8080", "poi")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/collections/poi/changes", u)
	u, err = changesURL("http://localhost:8080", "a/b c?")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/collections/a%2Fb%20c%3F/changes", u)
}

func TestFollowAppliesRemoteChanges(t *testing.T) {
	fx := newFixture(t)
	fx.api.mu.Lock()
	fx.api.features["F3"] = `{"type":"Feature","id":"F3","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"name":"new"}}`
	fx.api.mu.Unlock()
	f2 := mapkit.NewFeature("roads", "F2", orb.Point{0, 0}, nil)
	f3 := mapkit.NewFeature("roads", "F3", orb.Point{0, 0}, map[string]any{"name": "old"})
	fx.e.Display().AddFeature(f2)
	fx.e.Display().AddFeature(f3)

	// F1 is being edited and must not be touched by the feed.
	fx.selectF1(t)

	upgrader := websocket.Upgrader{}
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/roads/changes" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, ev := range []models.ChangeEvent{
			{Type: models.RecordDelete, Collection: "roads", ID: "F2"},
			{Type: models.RecordReplace, Collection: "roads", ID: "F3"},
			{Type: models.RecordDelete, Collection: "roads", ID: "F1"},
		} {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(feed.Close)

	// the feed lives on its own server; point the editor at it for the
	// socket while keeping the REST client on the fake API
	fx.e.opts.BaseURL = feed.URL

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fx.e.Follow(ctx, "roads") }()

	assert.Eventually(t, func() bool {
		fx.e.Flush()
		f := fx.e.Display().FeatureByID("roads", "F3")
		return fx.e.Display().FeatureByID("roads", "F2") == nil && f != nil && f.Properties["name"] == "new"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
	fx.e.Flush()
	assert.Equal(t, models.StatusEdit, fx.e.Status())
	assert.Equal(t, 1, fx.e.EditSource().Len())
}
