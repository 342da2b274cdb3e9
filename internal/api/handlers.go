package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nickng9/zenith/internal/passes"
	"github.com/nickng9/zenith/internal/propagation"
	"github.com/nickng9/zenith/internal/tle"
	"github.com/nickng9/zenith/internal/transform"
)

// handlePasses predicts passes for one satellite over the supplied
// observer location.
//
// Query: lat (required), lon (required), alt (meters, default 0),
// satellite_id (default: first configured), hours (default and cap from
// config), min_elevation (degrees, default from config).
func (s *Server) handlePasses(w http.ResponseWriter, r *http.Request) {
	obs, ok := s.parseObserver(w, r)
	if !ok {
		return
	}

	satelliteID := r.URL.Query().Get("satellite_id")
	if satelliteID == "" {
		satelliteID = s.engine.Satellites()[0].SatelliteID
	}

	hours, ok := s.parseHours(w, r)
	if !ok {
		return
	}
	mask, ok := s.parseMask(w, r)
	if !ok {
		return
	}

	t0 := time.Now().UTC()
	t1 := t0.Add(time.Duration(hours) * time.Hour)

	result, err := s.engine.PredictPasses(r.Context(), satelliteID, obs, t0, t1, mask)
	if err != nil {
		s.writeEngineError(w, r.Context(), satelliteID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"satellite_id": satelliteID,
		"start":        t0.Format(time.RFC3339),
		"end":          t1.Format(time.RFC3339),
		"passes":       orEmpty(result),
	})
}

// handlePassesAll predicts passes for every configured satellite in one
// request. Per-satellite failures are reported inline.
func (s *Server) handlePassesAll(w http.ResponseWriter, r *http.Request) {
	obs, ok := s.parseObserver(w, r)
	if !ok {
		return
	}
	hours, ok := s.parseHours(w, r)
	if !ok {
		return
	}
	mask, ok := s.parseMask(w, r)
	if !ok {
		return
	}

	t0 := time.Now().UTC()
	t1 := t0.Add(time.Duration(hours) * time.Hour)

	results := s.engine.PredictAll(r.Context(), obs, t0, t1, mask)
	writeJSON(w, http.StatusOK, map[string]any{
		"start":      t0.Format(time.RFC3339),
		"end":        t1.Format(time.RFC3339),
		"satellites": results,
	})
}

// handleLocation returns the satellite's current sub-point.
func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	satelliteID := r.PathValue("satellite_id")

	sp, err := s.engine.Subpoint(r.Context(), satelliteID, time.Time{})
	if err != nil {
		s.writeEngineError(w, r.Context(), satelliteID, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// handleElements returns cached element-set metadata without triggering a
// refresh.
func (s *Server) handleElements(w http.ResponseWriter, r *http.Request) {
	satelliteID := r.PathValue("satellite_id")

	set := s.engine.ElementSet(satelliteID)
	if set == nil {
		writeError(w, http.StatusNotFound, "no element set cached for "+satelliteID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"satellite_id": set.SatelliteID,
		"norad_id":     set.NoradID,
		"name":         set.Name,
		"line1":        set.Line1,
		"line2":        set.Line2,
		"epoch":        set.Epoch.Format(time.RFC3339),
		"last_updated": set.LastUpdated.Format(time.RFC3339),
		"age_seconds":  time.Since(set.LastUpdated).Seconds(),
	})
}

// handleRefresh force-refreshes every configured satellite's elements.
// Bearer-auth protected when auth is enabled.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	updated, err := s.engine.RefreshAll(r.Context())
	if err != nil && updated == 0 {
		s.writeEngineError(w, r.Context(), "", err)
		return
	}

	resp := map[string]any{"updated": updated}
	if err != nil {
		resp["partial_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) parseObserver(w http.ResponseWriter, r *http.Request) (transform.Observer, bool) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		writeError(w, http.StatusBadRequest, "lat must be a number in [-90, 90]")
		return transform.Observer{}, false
	}

	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil || lon < -180 || lon > 360 {
		writeError(w, http.StatusBadRequest, "lon must be a number in [-180, 360]")
		return transform.Observer{}, false
	}

	alt := 0.0
	if v := q.Get("alt"); v != "" {
		alt, err = strconv.ParseFloat(v, 64)
		if err != nil || alt < -500 || alt > 10000 {
			writeError(w, http.StatusBadRequest, "alt must be meters in [-500, 10000]")
			return transform.Observer{}, false
		}
	}

	return transform.NewObserver(lat, lon, alt), true
}

func (s *Server) parseHours(w http.ResponseWriter, r *http.Request) (int, bool) {
	hours := s.cfg.Predict.DefaultWindowHours
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > s.cfg.Predict.MaxWindowHours {
			writeError(w, http.StatusBadRequest,
				"hours must be an integer in [1, "+strconv.Itoa(s.cfg.Predict.MaxWindowHours)+"]")
			return 0, false
		}
		hours = n
	}
	return hours, true
}

func (s *Server) parseMask(w http.ResponseWriter, r *http.Request) (float64, bool) {
	mask := s.cfg.Predict.ElevationMask
	if v := r.URL.Query().Get("min_elevation"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 90 {
			writeError(w, http.StatusBadRequest, "min_elevation must be degrees in [0, 90]")
			return 0, false
		}
		mask = f
	}
	return mask, true
}

// writeEngineError maps the engine's error taxonomy to status codes:
// data absent → 404, upstream slow → 504, upstream data bad → 502,
// everything else → 500.
func (s *Server) writeEngineError(w http.ResponseWriter, ctx context.Context, satelliteID string, err error) {
	var parseErr *tle.ParseError
	var propErr *propagation.PropagationError

	switch {
	case errors.Is(err, tle.ErrNotFound):
		writeError(w, http.StatusNotFound, "no element set available for "+satelliteID)
	case errors.Is(err, tle.ErrRefreshTimeout):
		writeError(w, http.StatusGatewayTimeout, "element source did not respond in time")
	case errors.As(err, &parseErr), errors.As(err, &propErr):
		writeError(w, http.StatusBadGateway, "element data is unusable: "+err.Error())
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		// Client went away; nothing useful to write.
	default:
		s.logger.Error("request failed", "satellite_id", satelliteID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// orEmpty keeps the JSON field an array instead of null.
func orEmpty(p []passes.Pass) []passes.Pass {
	if p == nil {
		return []passes.Pass{}
	}
	return p
}
