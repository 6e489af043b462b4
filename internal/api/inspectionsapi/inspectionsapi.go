// Package inspectionsapi exposes the inspection workflow over HTTP. It is
// a thin JSON shell: request decoding, status mapping, nothing else. All
// domain behavior lives in the services it fronts.
package inspectionsapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/firehall/rigcheck/internal/models"
	"github.com/firehall/rigcheck/internal/release"
	"github.com/firehall/rigcheck/internal/services/inspections"
	"github.com/firehall/rigcheck/internal/tracker"
)

type InspectionService interface {
	SubmitInspection(ctx context.Context, sub *models.InspectionSubmission) error
	ResolveDefect(ctx context.Context, issueNumber int, note, resolvedBy string) error
}

type FleetService interface {
	Status(ctx context.Context) (map[string]int, error)
	Defects(ctx context.Context, apparatus string) ([]models.Defect, error)
	LowStock(ctx context.Context) ([]models.LowStockEntry, error)
}

type API struct {
	inspections InspectionService
	fleet       FleetService
	checklist   []release.Item
	swaggerJSON []byte
	log         zerolog.Logger
}

func New(insp InspectionService, fleet FleetService, checklist []release.Item, swaggerJSON []byte, log zerolog.Logger) *API {
	return &API{inspections: insp, fleet: fleet, checklist: checklist, swaggerJSON: swaggerJSON, log: log}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Get("/swagger.json", a.handleSwaggerJSON)
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/swagger.json")))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/inspections", a.handleSubmitInspection)
		r.Post("/defects/{number}/resolve", a.handleResolveDefect)
		r.Get("/fleet/status", a.handleFleetStatus)
		r.Get("/fleet/defects", a.handleFleetDefects)
		r.Get("/fleet/lowstock", a.handleLowStock)
		r.Get("/checklist", a.handleChecklist)
		r.Post("/release-decision", a.handleReleaseDecision)
	})

	return r
}

func (a *API) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	// Readiness means the tracker answers; a fleet status read exercises
	// exactly the dependency every other endpoint needs.
	if _, err := a.fleet.Status(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "tracker unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) handleSwaggerJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(a.swaggerJSON)
}

func (a *API) handleSubmitInspection(w http.ResponseWriter, r *http.Request) {
	var sub models.InspectionSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := a.inspections.SubmitInspection(r.Context(), &sub)
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var submitErr *inspections.SubmitError
	switch {
	case errors.Is(err, inspections.ErrSubmitInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &submitErr):
		a.log.Error().Strs("failed", submitErr.Failed).Str("apparatus", sub.Apparatus).Msg("inspection partially failed")
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  "some defects could not be recorded",
			"failed": submitErr.Failed,
		})
	case errors.Is(err, inspections.ErrLogEntry):
		a.log.Error().Err(err).Str("apparatus", sub.Apparatus).Msg("log entry failed")
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

type resolveRequest struct {
	Note       string `json:"note"`
	ResolvedBy string `json:"resolvedBy"`
}

func (a *API) handleResolveDefect(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		writeError(w, http.StatusBadRequest, "invalid issue number")
		return
	}

	// An empty body is a bare resolve; a present but malformed body is a
	// client error.
	var req resolveRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	if cred := bearerToken(r); cred != "" {
		ctx = tracker.WithCredential(ctx, cred)
	}

	err = a.inspections.ResolveDefect(ctx, number, req.Note, req.ResolvedBy)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, tracker.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "admin credential required")
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (a *API) handleFleetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := a.fleet.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"apparatus": status})
}

func (a *API) handleFleetDefects(w http.ResponseWriter, r *http.Request) {
	apparatus := r.URL.Query().Get("apparatus")
	if apparatus == "" {
		writeError(w, http.StatusBadRequest, "apparatus query parameter is required")
		return
	}
	ds, err := a.fleet.Defects(r.Context(), apparatus)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if ds == nil {
		ds = []models.Defect{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"defects": ds})
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	entries, err := a.fleet.LowStock(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if entries == nil {
		entries = []models.LowStockEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *API) handleChecklist(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": a.checklist})
}

type releaseDecisionRequest struct {
	Items []release.Item `json:"items"`
}

func (a *API) handleReleaseDecision(w http.ResponseWriter, r *http.Request) {
	var req releaseDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, it := range req.Items {
		switch it.Status {
		case release.StatusPass, release.StatusFail, release.StatusNA:
		default:
			writeError(w, http.StatusBadRequest, "unknown item status "+strconv.Quote(it.Status))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"decision": release.Decide(req.Items)})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
