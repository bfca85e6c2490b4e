// Package editor is the feature editing control a host map embeds. It owns
// one edit session store and wires the interaction and status machines,
// the change tracker, the feature builder and the collection client
// together.
//
// Every method must be called on the goroutine that drives the editor's
// Loop (Run, or Flush in tests and batch hosts). Network calls run on
// their own goroutines and post their results back to the loop.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/GrainArc/GeoEdit/Transformer"
	"github.com/GrainArc/GeoEdit/builder"
	"github.com/GrainArc/GeoEdit/interaction"
	"github.com/GrainArc/GeoEdit/jsonvalue"
	"github.com/GrainArc/GeoEdit/mapkit"
	"github.com/GrainArc/GeoEdit/models"
	"github.com/GrainArc/GeoEdit/services"
	"github.com/GrainArc/GeoEdit/status"
	"github.com/GrainArc/GeoEdit/store"
	"github.com/GrainArc/GeoEdit/tracker"
	"github.com/paulmach/orb/geojson"
)

const (
	DisplayLayer = "geoedit-display"
	EditLayer    = "geoedit-edit"

	DefaultGraceDelay     = 300 * time.Millisecond
	DefaultRequestTimeout = 30 * time.Second
)

var (
	ErrNotEditable     = errors.New("collection is not editable")
	ErrUnknownProperty = errors.New("property is not editable")
	ErrNotEditing      = errors.New("no feature is being edited")
	ErrInvalidValue    = errors.New("invalid property value")
)

// Collection is an editable collection and the CRS its features are
// stored in.
type Collection struct {
	ID  string
	CRS string
}

type Options struct {
	BaseURL     string
	Collections map[string]Collection
	// StyleFunction is handed to both layers.
	StyleFunction mapkit.StyleFunc
	// VectorSource is the display source; a MemorySource when nil.
	VectorSource mapkit.VectorSource

	HTTPClient     services.Doer
	Logger         *slog.Logger
	Loop           *store.Loop
	GraceDelay     time.Duration
	RequestTimeout time.Duration
	// Precision is the number of decimals sent to the server. Zero picks
	// a default for the storage CRS; negative sends full precision.
	Precision int
}

type Editor struct {
	opts    Options
	logger  *slog.Logger
	loop    *store.Loop
	s       *store.Store
	client  *services.CollectionClient
	tracker *tracker.Tracker
	mode    *interaction.ModeMachine
	status  *status.Machine
	overlay *status.Overlay
	tools   interaction.Tools

	display    mapkit.VectorSource
	edit       *mapkit.MemorySource
	projection string

	// selected is the display feature hidden while its editable copy is
	// loaded; editing is the copy in the edit source.
	selected      *mapkit.Feature
	editing       *mapkit.Feature
	addCollection string

	toolbar *Toolbar
	panel   *EditPanel
}

func New(opts Options) *Editor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loop := opts.Loop
	if loop == nil {
		loop = store.NewLoop()
	}
	display := opts.VectorSource
	if display == nil {
		display = mapkit.NewMemorySource()
	}
	grace := opts.GraceDelay
	if grace == 0 {
		grace = DefaultGraceDelay
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}

	e := &Editor{
		opts:       opts,
		logger:     logger,
		loop:       loop,
		s:          models.NewSessionStore(logger),
		client:     services.NewCollectionClient(opts.BaseURL, opts.HTTPClient, logger),
		display:    display,
		edit:       mapkit.NewMemorySource(),
		projection: Transformer.EPSG3857,
	}
	e.tracker = tracker.New(e.s)
	e.tools = interaction.Tools{
		Draws:  make(map[models.GeometryType]*mapkit.Draw, len(models.GeometryTypes)),
		Select: mapkit.NewSelect(e.display),
		Modify: mapkit.NewModify(e.edit),
	}
	for _, gt := range models.GeometryTypes {
		d := mapkit.NewDraw(string(gt), e.edit)
		d.OnDrawEnd(e.onDrawEnd)
		e.tools.Draws[gt] = d
	}
	e.tools.Select.OnSelect(e.onSelect)
	e.tools.Modify.OnModifyEnd(e.onModifyEnd)

	e.mode = interaction.NewModeMachine(e.s, e.tools, logger)
	e.status = status.NewMachine(e.s, status.Guards{HasChanges: e.tracker.HasChanges}, logger)
	e.overlay = status.NewOverlay(e.s, e.loop, grace)
	e.toolbar = newToolbar(e)
	e.panel = newEditPanel(e)
	return e
}

func (e *Editor) Store() *store.Store                { return e.s }
func (e *Editor) Loop() *store.Loop                  { return e.loop }
func (e *Editor) Client() *services.CollectionClient { return e.client }
func (e *Editor) Display() mapkit.VectorSource       { return e.display }
func (e *Editor) EditSource() *mapkit.MemorySource   { return e.edit }
func (e *Editor) Toolbar() *Toolbar                  { return e.toolbar }
func (e *Editor) EditPanel() *EditPanel              { return e.panel }
func (e *Editor) Tracker() *tracker.Tracker          { return e.tracker }
func (e *Editor) Status() models.Status              { return e.status.Status() }
func (e *Editor) Mode() models.Mode                  { return e.mode.Mode() }
func (e *Editor) ActiveTools() []string              { return e.mode.Active() }

// AddToMap registers the display and edit layers, the interactions and
// the toolbar and edit panel controls. The map's projection becomes the
// projection edited geometries are held in.
func (e *Editor) AddToMap(m mapkit.Map) {
	if p := m.Projection(); p != "" {
		e.projection = Transformer.NormalizeCRS(p)
	}
	m.AddLayer(&mapkit.Layer{Name: DisplayLayer, Source: e.display, Style: e.opts.StyleFunction})
	m.AddLayer(&mapkit.Layer{Name: EditLayer, Source: e.edit, Style: e.opts.StyleFunction})
	for _, in := range e.tools.All() {
		m.AddInteraction(in)
	}
	m.AddControl(e.toolbar)
	m.AddControl(e.panel)
}

// Init loads the schema of every configured collection. Collections whose
// schema fails to load are left out of the editable set.
func (e *Editor) Init(ctx context.Context) error {
	crs := make(map[string]string, len(e.opts.Collections))
	for id, c := range e.opts.Collections {
		if c.ID == "" {
			c.ID = id
		}
		crs[c.ID] = c.CRS
	}
	descs, err := services.NewSchemaService(e.client, e.logger).LoadAll(ctx, crs)
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}
	for _, d := range descs {
		d.CRS = Transformer.NormalizeCRS(d.CRS)
	}
	store.Set(e.s, models.CollectionsKey, descs)
	if e.descriptor(e.addCollection) == nil {
		e.addCollection = ""
		if ids := e.collectionIDs(); len(ids) > 0 {
			e.addCollection = ids[0]
		}
	}
	e.toolbar.Render()
	e.logger.Info("editor ready", "collections", len(descs))
	return nil
}

// LoadFeatures fills the display source with every feature of the
// editable collections. A collection that fails to list is logged and
// skipped.
func (e *Editor) LoadFeatures(ctx context.Context) {
	for _, id := range e.collectionIDs() {
		desc := e.descriptor(id)
		fc, err := e.client.List(ctx, id)
		if err != nil {
			e.logger.Warn("list features failed", "collection", id, "error", err)
			continue
		}
		for _, f := range fc.Features {
			mf, err := e.toMapFeature(desc, f)
			if err != nil {
				e.logger.Warn("feature not shown", "collection", id, "error", err)
				continue
			}
			e.upsertDisplay(mf)
		}
	}
}

// Run drives the loop until ctx is done.
func (e *Editor) Run(ctx context.Context) error { return e.loop.Run(ctx) }

// Flush waits for in-flight requests and applies their results.
func (e *Editor) Flush() { e.loop.Flush() }

func (e *Editor) ToggleAdd() error  { return e.mode.Toggle(models.ModeAdd) }
func (e *Editor) ToggleEdit() error { return e.mode.Toggle(models.ModeEdit) }

func (e *Editor) SetGeometryType(t models.GeometryType) error {
	return e.mode.SetGeometryType(t)
}

// SetAddCollection picks the collection new drawings are added to.
func (e *Editor) SetAddCollection(id string) error {
	if e.descriptor(id) == nil {
		return fmt.Errorf("%q: %w", id, ErrNotEditable)
	}
	if id != e.addCollection && !e.mode.CanSwitch() {
		return interaction.ErrEditInProgress
	}
	e.addCollection = id
	e.toolbar.Render()
	return nil
}

// SetProperty records a pending value for a property path of the feature
// being edited.
func (e *Editor) SetProperty(path string, v jsonvalue.Value) error {
	key, _, err := e.editableProperty(path)
	if err != nil {
		return err
	}
	if !v.IsScalar() {
		return fmt.Errorf("%q: %w: %s", path, ErrInvalidValue, v.Kind())
	}
	store.Update(e.s, models.PropertyChangesKey, func(c models.PropertyChanges) models.PropertyChanges {
		return c.Set(key, v)
	})
	return nil
}

// SetPropertyText parses text according to the property's schema type and
// records it. Empty text clears non-string properties.
func (e *Editor) SetPropertyText(path, text string) error {
	_, spec, err := e.editableProperty(path)
	if err != nil {
		return err
	}
	v, err := ParseValue(spec.Type, text)
	if err != nil {
		return fmt.Errorf("%q: %w", path, err)
	}
	return e.SetProperty(path, v)
}

func (e *Editor) editableProperty(path string) (string, models.PropertySpec, error) {
	st := e.status.Status()
	if st != models.StatusCreate && st != models.StatusEdit {
		return "", models.PropertySpec{}, ErrNotEditing
	}
	desc := e.descriptor(store.Get(e.s, models.ActiveCollectionKey))
	if desc == nil {
		return "", models.PropertySpec{}, ErrNotEditing
	}
	key := jsonvalue.ParsePath(path).String()
	spec, ok := desc.Properties[key]
	if !ok {
		return "", models.PropertySpec{}, fmt.Errorf("%q: %w", path, ErrUnknownProperty)
	}
	return key, spec, nil
}

// ParseValue converts form text into a value of a schema type.
func ParseValue(typ, text string) (jsonvalue.Value, error) {
	if typ == "string" {
		return jsonvalue.StringValue(text), nil
	}
	t := strings.TrimSpace(text)
	if t == "" {
		return jsonvalue.NullValue(), nil
	}
	switch typ {
	case "number":
		n, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return jsonvalue.Value{}, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, text)
		}
		return jsonvalue.NumberValue(n), nil
	case "integer":
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return jsonvalue.Value{}, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, text)
		}
		return jsonvalue.NumberValue(float64(n)), nil
	case "boolean":
		b, err := strconv.ParseBool(t)
		if err != nil {
			return jsonvalue.Value{}, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, text)
		}
		return jsonvalue.BoolValue(b), nil
	}
	return jsonvalue.StringValue(text), nil
}

// Preview builds the feature a save would send.
func (e *Editor) Preview() (*geojson.Feature, error) {
	desc := e.descriptor(store.Get(e.s, models.ActiveCollectionKey))
	if desc == nil {
		return nil, ErrNotEditing
	}
	return builder.Build(builder.FromStore(e.s), e.buildOptions(desc))
}

// Save sends the pending changes: a POST for a new feature, a PUT with
// If-Match for a loaded one.
func (e *Editor) Save() error {
	coll := store.Get(e.s, models.ActiveCollectionKey)
	desc := e.descriptor(coll)
	if desc == nil {
		return ErrNotEditing
	}
	built, err := builder.Build(builder.FromStore(e.s), e.buildOptions(desc))
	if err != nil {
		return err
	}
	if err := e.status.Fire(status.Save); err != nil {
		return err
	}
	gen := store.Get(e.s, models.GenerationKey)
	base := store.Get(e.s, models.BaseFeatureKey)

	if base == nil {
		e.loop.Go(func() func() {
			ctx, cancel := e.requestContext()
			defer cancel()
			id, err := e.client.Create(ctx, coll, built)
			return func() {
				if e.stale(gen, "create feature") {
					return
				}
				if err != nil {
					e.fail(err)
					return
				}
				if id != "" {
					built.ID = id
				}
				e.finish(desc, built)
			}
		})
		return nil
	}

	id, etag := featureID(base), store.Get(e.s, models.ETagKey)
	e.loop.Go(func() func() {
		ctx, cancel := e.requestContext()
		defer cancel()
		_, err := e.client.Replace(ctx, coll, id, built, etag)
		return func() {
			if e.stale(gen, "replace feature") {
				return
			}
			if err != nil {
				e.fail(err)
				return
			}
			e.finish(desc, built)
		}
	})
	return nil
}

// Delete removes the loaded feature on the server.
func (e *Editor) Delete() error {
	if err := e.status.Fire(status.Delete); err != nil {
		return err
	}
	coll := store.Get(e.s, models.ActiveCollectionKey)
	id := featureID(store.Get(e.s, models.BaseFeatureKey))
	gen := store.Get(e.s, models.GenerationKey)
	e.loop.Go(func() func() {
		ctx, cancel := e.requestContext()
		defer cancel()
		err := e.client.Delete(ctx, coll, id)
		return func() {
			if e.stale(gen, "delete feature") {
				return
			}
			if err != nil {
				e.fail(err)
				return
			}
			e.edit.Clear()
			e.editing, e.selected = nil, nil
			e.succeed()
		}
	})
	return nil
}

// Cancel discards the edit and puts a selected feature back on display.
// It is refused while a request is on the wire.
func (e *Editor) Cancel() error {
	if err := e.status.Fire(status.Cancel); err != nil {
		return err
	}
	e.discard()
	return nil
}

// Acknowledge dismisses the error overlay. The edit that failed resumes
// with its changes; a failed load has nothing to resume and is discarded.
func (e *Editor) Acknowledge() error {
	if err := e.status.Fire(status.Acknowledge); err != nil {
		return err
	}
	if e.status.Status() == models.StatusIdle {
		e.discard()
	}
	return nil
}

func (e *Editor) onSelect(f *mapkit.Feature) {
	desc := e.descriptor(f.Collection)
	if desc == nil || f.ID == "" {
		e.logger.Debug("feature not editable", "collection", f.Collection, "id", f.ID)
		return
	}
	gen := store.Get(e.s, models.GenerationKey)
	e.display.RemoveFeature(f)
	e.selected = f
	store.Set(e.s, models.ActiveCollectionKey, f.Collection)

	coll, id := f.Collection, f.ID
	e.loop.Go(func() func() {
		ctx, cancel := e.requestContext()
		defer cancel()
		base, etag, err := e.client.FetchOne(ctx, coll, id)
		return func() {
			if e.stale(gen, "fetch feature") {
				return
			}
			if err != nil {
				e.fail(err)
				return
			}
			e.loaded(desc, base, etag)
		}
	})
}

func (e *Editor) loaded(desc *models.CollectionDescriptor, base *geojson.Feature, etag string) {
	mf, err := e.toMapFeature(desc, base)
	if err != nil {
		e.fail(err)
		return
	}
	store.Set(e.s, models.BaseFeatureKey, base)
	if etag != "" {
		store.Set(e.s, models.ETagKey, etag)
	}
	e.editing = mf
	e.edit.AddFeature(mf)
	if err := e.status.Fire(status.Loaded); err != nil {
		e.logger.Error("feature loaded in unexpected status", "error", err)
	}
}

func (e *Editor) onDrawEnd(f *mapkit.Feature) {
	desc := e.descriptor(e.addCollection)
	if desc == nil {
		e.edit.RemoveFeature(f)
		e.logger.Warn("drawing dropped: no editable collection")
		return
	}
	f.Collection = desc.ID
	e.editing = f
	store.Set(e.s, models.ActiveCollectionKey, desc.ID)
	store.Set(e.s, models.GeometryChangeKey, f.Geometry)
	if err := e.status.Fire(status.DrawEnd); err != nil {
		e.logger.Error("drawend in unexpected status", "error", err)
	}
}

func (e *Editor) onModifyEnd(f *mapkit.Feature) {
	if f != e.editing {
		return
	}
	store.Set(e.s, models.GeometryChangeKey, f.Geometry)
}

// finish shows the saved feature and settles the session.
func (e *Editor) finish(desc *models.CollectionDescriptor, saved *geojson.Feature) {
	e.edit.Clear()
	e.editing, e.selected = nil, nil
	if mf, err := e.toMapFeature(desc, saved); err != nil {
		e.logger.Warn("saved feature not shown", "collection", desc.ID, "error", err)
	} else {
		e.upsertDisplay(mf)
	}
	e.succeed()
}

func (e *Editor) succeed() {
	if err := e.status.Succeed(); err != nil {
		e.logger.Error("success in unexpected status", "error", err)
	}
}

func (e *Editor) fail(err error) {
	msg := services.Message(err)
	e.logger.Warn("edit failed", "collection", store.Get(e.s, models.ActiveCollectionKey), "error", err)
	if ferr := e.status.Fail(msg); ferr != nil {
		e.logger.Error("failure in unexpected status", "error", ferr)
	}
}

func (e *Editor) discard() {
	e.edit.Clear()
	e.editing = nil
	if e.selected != nil {
		e.display.AddFeature(e.selected)
		e.selected = nil
	}
	models.ClearEdit(e.s)
}

// stale reports, and logs, a response that belongs to an edit that has
// since ended.
func (e *Editor) stale(gen uint64, op string) bool {
	cur := store.Get(e.s, models.GenerationKey)
	if cur == gen {
		return false
	}
	e.logger.Info("dropping stale response", "op", op, "generation", gen, "current", cur)
	return true
}

func (e *Editor) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), e.opts.RequestTimeout)
}

func (e *Editor) buildOptions(desc *models.CollectionDescriptor) builder.Options {
	prec := e.opts.Precision
	if prec == 0 {
		prec = Transformer.DefaultPrecision(desc.CRS)
	}
	return builder.Options{MapProjection: e.projection, StorageCRS: desc.CRS, Precision: prec}
}

func (e *Editor) descriptor(id string) *models.CollectionDescriptor {
	if id == "" {
		return nil
	}
	return store.Get(e.s, models.CollectionsKey)[id]
}

func (e *Editor) collectionIDs() []string {
	cols := store.Get(e.s, models.CollectionsKey)
	ids := make([]string, 0, len(cols))
	for id := range cols {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// toMapFeature reprojects a server feature into the map projection.
func (e *Editor) toMapFeature(desc *models.CollectionDescriptor, f *geojson.Feature) (*mapkit.Feature, error) {
	g, err := Transformer.Reproject(f.Geometry, desc.CRS, e.projection)
	if err != nil {
		return nil, err
	}
	props := make(map[string]any, len(f.Properties))
	for k, v := range f.Properties {
		props[k] = v
	}
	return mapkit.NewFeature(desc.ID, featureID(f), g, props), nil
}

// upsertDisplay adds f, replacing a displayed feature with the same id.
func (e *Editor) upsertDisplay(f *mapkit.Feature) {
	if f.ID != "" {
		if old := e.display.FeatureByID(f.Collection, f.ID); old != nil {
			e.display.RemoveFeature(old)
		}
	}
	e.display.AddFeature(f)
}

func featureID(f *geojson.Feature) string {
	if f == nil {
		return ""
	}
	switch id := f.ID.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}
