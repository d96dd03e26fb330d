package http

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"mgnrega/internal/core"
	"mgnrega/internal/format"
	"mgnrega/internal/log"
	"mgnrega/internal/services"
	"mgnrega/internal/storage"
)

// uiHistoryYears is the window of the history table under a report.
const uiHistoryYears = 1

type reportPage struct {
	Report    services.Report
	History   []services.HistoryEntry
	Detection *core.Detection
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"indianNumber":  func(v any) string { return format.IndianNumber(toFloat(v)) },
		"currency":      func(v any) string { return format.Currency(toFloat(v)) },
		"largeCurrency": func(v any) string { return format.LargeCurrency(toFloat(v)) },
		"percentage":    func(v any, decimals int) string { return format.Percentage(toFloat(v), decimals) },
		"monthYear":     format.MonthYear,
		"truncate":      format.Truncate,
		"words":         func(v any) string { return format.NumberToWords(int64(toFloat(v))) },
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	default:
		return 0
	}
}

func (s *Server) render(name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, errors.New("templates not loaded")
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func (s *Server) writePartial(w http.ResponseWriter, r *http.Request, name string, data any) {
	html, err := s.render(name, data)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed rendering template",
			log.FieldOperation, log.OpRender, "template", name, log.FieldError, err)
		ErrorResponse(http.StatusInternalServerError, "Something went wrong. Please try again.").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(html).Write(w)
}

// uiError renders err as an error partial.
func (s *Server) uiError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status := statusFor(err)
	msg := "Something went wrong. Please try again."
	switch status {
	case http.StatusNotFound:
		msg = "No data available for this district yet."
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		msg = "Invalid request."
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "UI request failed",
			log.FieldOperation, op, log.FieldError, err)
	}
	ErrorResponse(status, msg).Write(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	states, err := s.store.ListStates(r.Context(), 0, 100)
	if err != nil {
		s.uiError(w, r, err, log.OpList)
		return
	}
	html, err := s.render("index", struct {
		States  []core.State
		Version string
	}{states, Version})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed rendering index", log.FieldError, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(html)
}

func (s *Server) handleDistrictOptions(w http.ResponseWriter, r *http.Request) {
	stateID, err := QueryInt(r.URL.Query(), "state_id", 0, 0, 1<<30)
	if err != nil {
		s.uiError(w, r, err, log.OpList)
		return
	}
	var districts []core.District
	if stateID > 0 {
		if districts, err = s.store.ListDistricts(r.Context(), int64(stateID), 0, 1000); err != nil {
			s.uiError(w, r, err, log.OpList)
			return
		}
	}
	s.writePartial(w, r, "district_options", districts)
}

func (s *Server) handleDistrictPartial(w http.ResponseWriter, r *http.Request) {
	id, err := ParsePathID(r, "id")
	if err != nil {
		s.uiError(w, r, err, log.OpRender)
		return
	}
	page, err := s.reportPage(r, id)
	if err != nil {
		s.uiError(w, r, err, log.OpRender)
		return
	}
	html, err := s.render("district_report", page)
	if err != nil {
		s.uiError(w, r, err, log.OpRender)
		return
	}
	NewHTMXResponse().
		TriggerDistrictSelected(page.Report.District.ID, page.Report.District.StateID).
		BodyHTML(html).
		Write(w)
}

func (s *Server) handleDetectPartial(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := QueryFloat(q, "lat")
	if err != nil {
		s.uiError(w, r, err, log.OpDetect)
		return
	}
	lon, err := QueryFloat(q, "lon")
	if err != nil {
		s.uiError(w, r, err, log.OpDetect)
		return
	}
	d, err := s.dashboard.Detect(r.Context(), lat, lon)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			ErrorResponse(http.StatusNotFound, "Could not find a district near you. Please pick it from the list.").Write(w)
			return
		}
		s.uiError(w, r, err, log.OpDetect)
		return
	}
	page, err := s.reportPage(r, d.District.ID)
	if err != nil {
		s.uiError(w, r, err, log.OpRender)
		return
	}
	page.Detection = &d
	html, err := s.render("detected", page)
	if err != nil {
		s.uiError(w, r, err, log.OpRender)
		return
	}
	NewHTMXResponse().
		TriggerDistrictSelected(d.District.ID, d.State.ID).
		BodyHTML(html).
		Write(w)
}

// reportPage loads a district's latest report and a year of history.
func (s *Server) reportPage(r *http.Request, id int64) (reportPage, error) {
	report, err := s.report(r, id, storage.MetricFilter{})
	if err != nil {
		return reportPage{}, err
	}
	history, err := s.dashboard.History(r.Context(), id, uiHistoryYears)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return reportPage{}, err
	}
	return reportPage{Report: report, History: history}, nil
}
