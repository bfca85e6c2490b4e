package editor

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/GrainArc/GeoEdit/mapkit"
	"github.com/GrainArc/GeoEdit/models"
	"github.com/gorilla/websocket"
)

var feedDialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}

// Follow subscribes to the change feed of a collection and keeps the
// display source in step with other editors until ctx is done or the
// connection drops. The feature being edited here is never touched.
func (e *Editor) Follow(ctx context.Context, collection string) error {
	target, err := changesURL(e.opts.BaseURL, collection)
	if err != nil {
		return err
	}
	conn, _, err := feedDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("follow %s: %w", collection, err)
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	e.logger.Info("following changes", "collection", collection)
	for {
		var ev models.ChangeEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("follow %s: %w", collection, err)
		}
		e.loop.Post(func() { e.applyChange(ev) })
	}
}

func changesURL(base, collection string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String() + "/collections/" + url.PathEscape(collection) + "/changes", nil
}

// applyChange runs on the loop.
func (e *Editor) applyChange(ev models.ChangeEvent) {
	desc := e.descriptor(ev.Collection)
	if desc == nil || ev.ID == "" {
		return
	}
	if e.isEditing(ev.Collection, ev.ID) {
		e.logger.Debug("change to feature being edited ignored", "collection", ev.Collection, "id", ev.ID, "type", ev.Type)
		return
	}
	switch ev.Type {
	case models.RecordDelete:
		if f := e.display.FeatureByID(ev.Collection, ev.ID); f != nil {
			e.display.RemoveFeature(f)
		}
	case models.RecordCreate, models.RecordReplace:
		e.loop.Go(func() func() {
			ctx, cancel := e.requestContext()
			defer cancel()
			f, _, err := e.client.FetchOne(ctx, ev.Collection, ev.ID)
			return func() {
				if err != nil {
					e.logger.Warn("refresh feature failed", "collection", ev.Collection, "id", ev.ID, "error", err)
					return
				}
				if e.isEditing(ev.Collection, ev.ID) {
					return
				}
				mf, err := e.toMapFeature(desc, f)
				if err != nil {
					e.logger.Warn("feature not shown", "collection", ev.Collection, "error", err)
					return
				}
				e.upsertDisplay(mf)
			}
		})
	}
}

func (e *Editor) isEditing(collection, id string) bool {
	for _, f := range [...]*mapkit.Feature{e.selected, e.editing} {
		if f != nil && f.Collection == collection && f.ID == id {
			return true
		}
	}
	return false
}
