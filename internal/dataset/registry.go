package dataset

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/MikeSquared-Agency/insight/internal/query"
)

// Registry holds upload metadata for the retention window. When an entry
// expires or is deleted its file is removed from disk.
type Registry struct {
	cache  *cache.Cache
	logger *slog.Logger
}

func NewRegistry(retention time.Duration, logger *slog.Logger) *Registry {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	c := cache.New(retention, min(retention, 10*time.Minute))
	r := &Registry{cache: c, logger: logger}
	c.OnEvicted(r.evicted)
	return r
}

func (r *Registry) evicted(id string, v any) {
	ds, ok := v.(*Dataset)
	if !ok {
		return
	}
	if err := os.Remove(ds.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("failed to remove dataset file", "dataset_id", id, "path", ds.Path, "error", err)
		return
	}
	r.logger.Info("dataset evicted", "dataset_id", id)
}

func (r *Registry) Put(ds *Dataset) {
	r.cache.Set(ds.ID, ds, cache.DefaultExpiration)
}

func (r *Registry) Get(id string) (*Dataset, error) {
	if x, found := r.cache.Get(id); found {
		return x.(*Dataset), nil
	}
	return nil, query.ErrNotFound
}

// Delete drops the entry and its file.
func (r *Registry) Delete(id string) error {
	if _, found := r.cache.Get(id); !found {
		return query.ErrNotFound
	}
	r.cache.Delete(id)
	return nil
}

// Len counts live entries, including expired ones not yet swept.
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

// SweepDir removes regular files in dir last modified before now-retention.
// Uploads that outlived a restart are cleaned this way.
func SweepDir(dir string, retention time.Duration, now time.Time, logger *slog.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := now.Add(-retention)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			logger.Error("failed to delete old upload", "file", e.Name(), "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("cleaned old uploads", "count", removed, "dir", dir)
	}
	return removed, nil
}
