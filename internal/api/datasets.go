package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/insight/internal/bus"
	"github.com/MikeSquared-Agency/insight/internal/dataset"
)

// Room for multipart framing and the dataset_name field on top of the file itself.
const multipartOverhead = 1 << 20

// uploadDataset handles POST /api/datasets/upload
func (s *Server) uploadDataset(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.datasets.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeServiceError(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, "a file is required in the 'file' form field")
		return
	}
	defer file.Close()

	if err := dataset.ValidateUpload(header.Filename, header.Size, maxBytes); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ds, err := s.datasets.Upload(header.Filename, r.FormValue("dataset_name"), file)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.publish(bus.SubjectDatasetUploaded, bus.DatasetEvent{
		DatasetID: ds.ID,
		Name:      ds.Summary.Name,
		FileType:  ds.Summary.FileType,
		Rows:      ds.Summary.RowCount,
		Timestamp: time.Now().UTC(),
	})
	writeJSON(w, http.StatusOK, ds.Summary)
}

// getDataset handles GET /api/datasets/{datasetID}
func (s *Server) getDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.datasets.Get(chi.URLParam(r, "datasetID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds.Summary)
}

// deleteDataset handles DELETE /api/datasets/{datasetID}
func (s *Server) deleteDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "datasetID")
	if err := s.datasets.Delete(id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.publish(bus.SubjectDatasetDeleted, bus.DatasetEvent{DatasetID: id, Timestamp: time.Now().UTC()})
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Dataset deleted"})
}
