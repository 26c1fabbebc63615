package web

import (
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/gridview/grid"
	"github.com/JonMunkholm/gridview/internal/logging"
)

// writeJSON encodes v as JSON with the given status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}

// exportRecord renders row as a CSV record in column order. Null cells are
// empty; other cells use their plain text form so the file round-trips.
func exportRecord(row grid.Row, columns []grid.Column) []string {
	record := make([]string, len(columns))
	for i, col := range columns {
		record[i] = row.Get(col.Key).Text()
	}
	return record
}
