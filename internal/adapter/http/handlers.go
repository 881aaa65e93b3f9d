package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/colorbar-timeseries/internal/catalog"
	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
	"github.com/couchcryptid/colorbar-timeseries/internal/export"
	"github.com/couchcryptid/colorbar-timeseries/internal/imagestore"
)

const maxBodyBytes = 1 << 20

type domainsResponse struct {
	Active  string   `json:"active"`
	Domains []string `json:"domains"`
}

type switchDomainRequest struct {
	Domain string `json:"domain"`
}

type prefetchRequest struct {
	Variable string    `json:"variable"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

func (s *Server) handleDomains(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domainsResponse{Active: s.svc.Domain(), Domains: s.svc.Domains()})
}

func (s *Server) handleSwitchDomain(w http.ResponseWriter, r *http.Request) {
	var req switchDomainRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.svc.SwitchDomain(req.Domain); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domainsResponse{Active: s.svc.Domain(), Domains: s.svc.Domains()})
}

func (s *Server) handlePrefetch(w http.ResponseWriter, r *http.Request) {
	var req prefetchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Variable == "" {
		writeError(w, fmt.Errorf("%w: variable is required", domain.ErrInvalidRequest))
		return
	}
	if err := s.svc.Prefetch(req.Variable, imagestore.Window{Start: req.Start, End: req.End}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Server) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	var req domain.TimeSeriesRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := s.svc.Generate(r.Context(), req, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	s.publish(r.Context(), result)
	writeJSON(w, http.StatusOK, result)
}

// handleExport generates a series and returns it as a workbook or chart.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = "xlsx"
	}

	opts := export.DefaultChartOptions()
	if t := q.Get("threshold"); t != "" {
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			writeError(w, fmt.Errorf("%w: threshold %q", domain.ErrInvalidRequest, t))
			return
		}
		opts.Threshold = &v
		opts.ThresholdLabel = q.Get("threshold_label")
	}

	var req domain.TimeSeriesRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if format != "xlsx" && format != "png" {
		writeError(w, fmt.Errorf("%w: format %q", domain.ErrInvalidRequest, format))
		return
	}

	result, err := s.svc.Generate(r.Context(), req, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	s.publish(r.Context(), result)

	var buf bytes.Buffer
	contentType := "image/png"
	if format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = export.WriteXLSX(&buf, result)
	} else {
		err = export.WriteChart(&buf, result, opts)
	}
	if err != nil {
		if errors.Is(err, export.ErrNothingToPlot) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q",
		fmt.Sprintf("%s_%s.%s", result.Domain, result.Variable, format)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck // client may have gone away
}

// handleValue decodes one point: /value?variable=T2&timestamp=...&x=0.5&y=0.5.
func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	variable := q.Get("variable")
	if variable == "" {
		writeError(w, fmt.Errorf("%w: variable is required", domain.ErrInvalidRequest))
		return
	}
	ts, err := catalog.ParseTimestamp(q.Get("timestamp"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	x, errX := strconv.ParseFloat(q.Get("x"), 64)
	y, errY := strconv.ParseFloat(q.Get("y"), 64)
	if errX != nil || errY != nil {
		writeError(w, fmt.Errorf("%w: x and y must be numbers", domain.ErrInvalidRequest))
		return
	}

	pv, err := s.svc.ValueAt(r.Context(), variable, ts, domain.SamplePoint{X: x, Y: y, Label: q.Get("label")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pv)
}
