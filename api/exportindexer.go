package api

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/aouyang1/photobooth/export"
	"github.com/aouyang1/photobooth/store"
	mapset "github.com/deckarep/golang-set/v2"
)

const indexInterval = 24 * time.Hour

// ExportIndexer keeps the exports ledger in step with the exports directory:
// files the ledger misses are registered and rows whose file is gone are
// dropped.
type ExportIndexer struct {
	db       *store.Database
	exporter *export.Exporter
}

func NewExportIndexer(db *store.Database, exporter *export.Exporter) (*ExportIndexer, error) {
	if db == nil {
		return nil, errors.New("no database provided for export indexer")
	}
	return &ExportIndexer{db: db, exporter: exporter}, nil
}

func (x *ExportIndexer) getLocalFiles() (mapset.Set[string], map[string]os.FileInfo, error) {
	entries, err := os.ReadDir(x.exporter.Dir())
	if errors.Is(err, os.ErrNotExist) {
		return mapset.NewSet[string](), nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	names := mapset.NewSet[string]()
	infos := make(map[string]os.FileInfo)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !export.ValidName(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		names.Add(name)
		infos[name] = info
	}
	return names, infos, nil
}

// Reconcile runs one pass and returns how many rows were added and removed.
func (x *ExportIndexer) Reconcile() (int, int, error) {
	local, infos, err := x.getLocalFiles()
	if err != nil {
		return 0, 0, err
	}
	names, err := x.db.GetAllExportNames()
	if err != nil {
		return 0, 0, err
	}
	registered := mapset.NewSet(names...)

	added := 0
	for _, name := range local.Difference(registered).ToSlice() {
		layout, frameID, created, ok := export.ParseFileName(x.exporter.Product(), name)
		if !ok {
			slog.Debug("skipping unrecognized file in exports dir", "name", name)
			continue
		}
		e := &store.Export{
			Name:      name,
			LayoutID:  string(layout),
			FrameID:   frameID,
			Framed:    frameID != export.NoFrame,
			SizeBytes: infos[name].Size(),
			CreatedAt: created,
		}
		if err := x.db.InsertExport(e); err != nil {
			slog.Warn("error while registering export", "name", name, "error", err)
			continue
		}
		added++
	}

	removed := 0
	for _, name := range registered.Difference(local).ToSlice() {
		if err := x.db.DeleteExport(name); err != nil {
			slog.Warn("error while deregistering export", "name", name, "error", err)
			continue
		}
		removed++
	}

	if added > 0 || removed > 0 {
		slog.Info("reconciled exports", "added", added, "removed", removed)
	}
	return added, removed, nil
}

func (x *ExportIndexer) Run(ctx context.Context) {
	ticker := time.NewTicker(indexInterval)
	defer ticker.Stop()

	// Initial scan
	if _, _, err := x.Reconcile(); err != nil {
		slog.Warn("error reconciling exports", "dir", x.exporter.Dir(), "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := x.Reconcile(); err != nil {
				slog.Warn("error reconciling exports", "dir", x.exporter.Dir(), "error", err)
			}
		}
	}
}
