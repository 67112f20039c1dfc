package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/report"
)

// ReportsHandler serves the admin dashboard and reports.
type ReportsHandler struct {
	DB                *db.DB
	LowStockThreshold int
}

// Dashboard handles GET /api/dashboard.
func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := report.BuildDashboard(r.Context(), h.DB)
	if err != nil {
		storageError(w, r, "build dashboard", err)
		return
	}
	jsonResponse(w, http.StatusOK, d)
}

// Summary handles GET /api/reports.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := report.BuildSummary(r.Context(), h.DB, h.LowStockThreshold)
	if err != nil {
		storageError(w, r, "build report", err)
		return
	}
	jsonResponse(w, http.StatusOK, s)
}

// Export handles GET /api/reports/inventory.xlsx.
func (h *ReportsHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := report.Export(r.Context(), h.DB, h.LowStockThreshold, &buf); err != nil {
		storageError(w, r, "export report", err)
		return
	}

	name := "inventory-" + time.Now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}
