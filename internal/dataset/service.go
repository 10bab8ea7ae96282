package dataset

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Extensions lists the accepted upload types.
var Extensions = []string{".csv", ".xlsx", ".xls", ".json"}

var (
	ErrUnsupportedType = errors.New("unsupported file type; supported types: CSV, Excel, JSON")
	ErrTooLarge        = errors.New("file too large")
	ErrFileGone        = errors.New("dataset file no longer available")
)

// ValidateUpload checks the extension and size before any bytes are stored.
// A negative size skips the size check.
func ValidateUpload(filename string, size, maxBytes int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(Extensions, ext) {
		return fmt.Errorf("%q: %w", filename, ErrUnsupportedType)
	}
	if maxBytes > 0 && size > maxBytes {
		return fmt.Errorf("maximum size is %d MB: %w", maxBytes/(1024*1024), ErrTooLarge)
	}
	return nil
}

// Service stores uploads on disk and keeps their parsed metadata in a Registry.
type Service struct {
	dir      string
	maxBytes int64
	registry *Registry
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(dir string, maxBytes int64, registry *Registry, logger *slog.Logger) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir upload dir: %w", err)
	}
	return &Service{
		dir:      dir,
		maxBytes: maxBytes,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// MaxBytes is the upload size limit.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores r as a new dataset. name defaults to filename.
func (s *Service) Upload(filename, name string, r io.Reader) (*Dataset, error) {
	if err := ValidateUpload(filename, -1, s.maxBytes); err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(filename))

	id := uuid.New().String()
	path := filepath.Join(s.dir, id+ext)

	size, err := s.save(path, r)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("open upload: %w", err)
	}
	table, err := Read(ext, f)
	f.Close()
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	if name == "" {
		name = filename
	}
	preview := BuildPreview(table)
	ds := &Dataset{
		ID:               id,
		OriginalFilename: filename,
		Path:             path,
		Size:             size,
		UploadedAt:       s.now().UTC(),
		Summary: Summary{
			DatasetID: id,
			Name:      name,
			FileType:  strings.TrimPrefix(ext, "."),
			Columns:   preview.Columns,
			RowCount:  preview.TotalRows,
			Preview:   preview,
		},
		Context: BuildContext(name, table, preview.ColumnStats),
	}
	s.registry.Put(ds)

	s.logger.Info("dataset uploaded",
		"dataset_id", id,
		"file_type", ds.Summary.FileType,
		"rows", ds.Summary.RowCount,
		"columns", len(ds.Summary.Columns),
		"bytes", size,
	)
	return ds, nil
}

func (s *Service) save(path string, r io.Reader) (int64, error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create upload: %w", err)
	}
	defer out.Close()

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(out, src)
	if err != nil {
		return 0, fmt.Errorf("write upload: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return 0, fmt.Errorf("maximum size is %d MB: %w", s.maxBytes/(1024*1024), ErrTooLarge)
	}
	return n, nil
}

// Get returns a registered dataset whose file is still on disk.
func (s *Service) Get(id string) (*Dataset, error) {
	ds, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(ds.Path); err != nil {
		return nil, ErrFileGone
	}
	return ds, nil
}

// Context returns the prompt context for id.
func (s *Service) Context(id string) (*Context, error) {
	ds, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return ds.Context, nil
}

func (s *Service) Delete(id string) error {
	if err := s.registry.Delete(id); err != nil {
		return err
	}
	s.logger.Info("dataset deleted", "dataset_id", id)
	return nil
}
