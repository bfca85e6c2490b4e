// geoedit-watch loads every configured collection into a headless editor
// and keeps it in step with the server's change feeds.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GrainArc/GeoEdit/config"
	"github.com/GrainArc/GeoEdit/editor"
	"github.com/GrainArc/GeoEdit/mapkit"
	"golang.org/x/sync/errgroup"
)

func main() {
	path := flag.String("config", "config.yaml", "config file (.yaml or .xml)")
	every := flag.Duration("report", time.Minute, "how often to log the feature count")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(cfg, *every, logger); err != nil {
		logger.Error("watch", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, every time.Duration, logger *slog.Logger) error {
	opts, err := editorOptions(cfg, logger)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := editor.New(opts)
	e.AddToMap(mapkit.NewMemoryMap(cfg.Editor.Projection))
	if err := e.Init(ctx); err != nil {
		return err
	}
	e.LoadFeatures(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.Run(ctx) })
	for _, id := range e.Toolbar().State().Collections {
		id := id
		g.Go(func() error { return e.Follow(ctx, id) })
	}
	g.Go(func() error {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				e.Loop().Post(func() {
					logger.Info("display", "features", len(e.Display().Features()))
				})
			}
		}
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func editorOptions(cfg *config.Config, logger *slog.Logger) (editor.Options, error) {
	grace, err := config.ParseDuration(cfg.Editor.GraceDelay, editor.DefaultGraceDelay)
	if err != nil {
		return editor.Options{}, err
	}
	timeout, err := config.ParseDuration(cfg.Editor.RequestTimeout, editor.DefaultRequestTimeout)
	if err != nil {
		return editor.Options{}, err
	}
	colls := make(map[string]editor.Collection, len(cfg.Collections))
	for _, c := range cfg.Collections {
		id := config.CollectionID(c)
		colls[id] = editor.Collection{ID: id, CRS: c.CRS}
	}
	return editor.Options{
		BaseURL:        cfg.Editor.BaseURL,
		Collections:    colls,
		Logger:         logger,
		GraceDelay:     grace,
		RequestTimeout: timeout,
		Precision:      cfg.Editor.Precision,
	}, nil
}
