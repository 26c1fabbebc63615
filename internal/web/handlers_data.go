package web

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/gridview/grid"
	"github.com/JonMunkholm/gridview/internal/logging"
	"github.com/go-chi/chi/v5"
)

// exportFlushInterval is how many CSV rows are buffered between flushes.
const exportFlushInterval = 1000

// handleCollection serves GET /{collection}. With export=true the whole
// collection is streamed as CSV; otherwise the query parameters select a
// page.
func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("export") == "true" {
		s.handleExport(w, r)
		return
	}

	view, err := grid.DecodeParams(q, s.store.Columns(), s.cfg.Collection.DefaultPageSize)
	if err != nil {
		s.respondError(w, r, err, true)
		return
	}
	if view.PageSize > s.cfg.Collection.MaxPageSize {
		s.respondError(w, r, fmt.Errorf("pageSize %d exceeds maximum of %d", view.PageSize, s.cfg.Collection.MaxPageSize), true)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.RequestTimeout)
	defer cancel()

	page, err := s.store.Page(ctx, view)
	if err != nil {
		s.respondError(w, r, err, false)
		return
	}

	logging.FromContext(r.Context()).Debug("page served",
		"page", view.Page,
		"page_size", view.PageSize,
		"rows", len(page.Rows),
		"total_records", page.TotalRecords,
	)
	writeJSON(w, r, http.StatusOK, page)
}

// handleRecord serves GET /{collection}/{id}.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	row, err := s.store.Record(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, false)
		return
	}
	writeJSON(w, r, http.StatusOK, row)
}

// handleExport streams every row as CSV, one column per declared key.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if err := s.exports.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err, false)
		return
	}
	defer s.exports.Release()

	columns := s.store.Columns()
	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Key
	}

	filename := fmt.Sprintf("export_%s.csv", time.Now().Format(grid.DefaultExportDateLayout))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	logger := logging.WithFields(r.Context(), "collection", s.cfg.Collection.Name)
	rc := http.NewResponseController(w)
	csvWriter := csv.NewWriter(w)

	if err := csvWriter.Write(header); err != nil {
		logger.Warn("export aborted", "error", err)
		return
	}

	rowCount := 0
	err := s.store.Stream(r.Context(), func(row grid.Row) error {
		if err := csvWriter.Write(exportRecord(row, columns)); err != nil {
			return err
		}

		rowCount++
		if rowCount%exportFlushInterval == 0 {
			csvWriter.Flush()
			if err := csvWriter.Error(); err != nil {
				return err
			}
			rc.Flush()
		}
		return nil
	})

	csvWriter.Flush()

	// Headers are already sent; failures can only be logged.
	if err != nil && err != r.Context().Err() {
		logger.Error("export failed", "rows", rowCount, "error", err)
		return
	}
	logger.Info("export served", "rows", rowCount)
}
