package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/yyozen/linkgate/internal/httpx"
	"github.com/yyozen/linkgate/internal/service"
	"github.com/yyozen/linkgate/pkg/clicks"
	"github.com/yyozen/linkgate/pkg/metrics"
)

// RedirectHandler serves the hot redirect path.
type RedirectHandler struct {
	engine   *service.Engine
	recorder *clicks.Recorder
	logger   *zap.Logger
}

// NewRedirectHandler creates the handler.
func NewRedirectHandler(engine *service.Engine, recorder *clicks.Recorder, logger *zap.Logger) *RedirectHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{engine: engine, recorder: recorder, logger: logger}
}

// Redirect handles GET /{slug}. The response is written before click
// recording is dispatched; the click pipeline can never delay or fail the
// redirect.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	decision := h.engine.Decide(r.Context(), service.Request{
		Slug:        slug,
		UserAgent:   r.UserAgent(),
		IfNoneMatch: r.Header.Get("If-None-Match"),
	})
	metrics.RedirectsTotal.WithLabelValues(string(decision.Outcome)).Inc()

	if decision.ETag != "" {
		w.Header().Set("ETag", decision.ETag)
	}
	w.Header().Set("Cache-Control", decision.CacheControl)

	if decision.Status == http.StatusNotModified {
		w.WriteHeader(http.StatusNotModified)
	} else {
		w.Header().Set("Location", decision.Location)
		w.WriteHeader(decision.Status)
	}

	if decision.RecordClick {
		h.recorder.Record(clicks.Click{
			LinkID:    decision.LinkID,
			IP:        httpx.ClientIP(r),
			UserAgent: r.UserAgent(),
			Referrer:  r.Referer(),
		})
	}
}

// helper: write JSON response
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}
