package controlplane

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/macnak/simulant/config"
)

// handlers implements the /api routes against a Store.
type handlers struct {
	store   *Store
	version string
	logger  zerolog.Logger
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are already written; nothing more to send the client.
		log.Error().Err(err).Int("status", status).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string, errs any) {
	body := map[string]any{
		"status":                  "error",
		"message":                 message,
		"previous_config_retained": true,
	}
	if errs != nil {
		body["errors"] = errs
	}
	writeJSON(w, status, body)
}

// validationPayload flattens a validation failure for the wire.
func validationPayload(err error) (string, any) {
	var verrs config.ValidationErrors
	if errors.As(err, &verrs) {
		return "Configuration validation failed", verrs
	}
	return "Failed to parse configuration file", []map[string]string{{"error": err.Error()}}
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	cfg := h.store.Current()
	count := 0
	if cfg != nil {
		count = len(cfg.Endpoints)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"version":         h.version,
		"config_loaded":   cfg != nil,
		"endpoints_count": count,
	})
}

// endpointSummary is the compact listing shape.
type endpointSummary struct {
	ID             string               `json:"id"`
	Method         config.Method        `json:"method"`
	Path           string               `json:"path"`
	Latency        config.LatencyConfig `json:"latency"`
	ErrorRate      float64              `json:"error_rate"`
	ResponseStatus int                  `json:"response_status"`
}

func summarize(ep *config.Endpoint) endpointSummary {
	return endpointSummary{
		ID:             ep.ID,
		Method:         ep.Method,
		Path:           ep.Path,
		Latency:        ep.Latency,
		ErrorRate:      ep.ErrorProfile.Rate,
		ResponseStatus: ep.Response.Status,
	}
}

func (h *handlers) listEndpoints(w http.ResponseWriter, _ *http.Request) {
	summaries := []endpointSummary{}
	if cfg := h.store.Current(); cfg != nil {
		for i := range cfg.Endpoints {
			summaries = append(summaries, summarize(&cfg.Endpoints[i]))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "success",
		"endpoints_count": len(summaries),
		"endpoints":       summaries,
	})
}

func (h *handlers) getEndpoint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if cfg := h.store.Current(); cfg != nil {
		for i := range cfg.Endpoints {
			if cfg.Endpoints[i].ID == id {
				writeJSON(w, http.StatusOK, map[string]any{
					"status":   "success",
					"endpoint": cfg.Endpoints[i],
				})
				return
			}
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{
		"status":  "error",
		"message": "Endpoint not found",
	})
}

// mutate clones the active document (or starts an empty one), lets fn edit
// it, and applies the result. Validation failures leave the previous
// configuration live.
func (h *handlers) mutate(w http.ResponseWriter, fn func(cfg *config.Configuration) error, okMessage string) {
	cfg := cloneConfig(h.store.Current())
	if err := fn(cfg); err != nil {
		writeError(w, http.StatusNotFound, err.Error(), nil)
		return
	}
	// Round-trip once more so schema defaults reach fields the edit left
	// unset, exactly as a parsed import would have them.
	cfg = cloneConfig(cfg)
	if err := h.store.Apply(cfg); err != nil {
		message, errs := validationPayload(err)
		writeError(w, http.StatusBadRequest, message, errs)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": okMessage,
	})
}

func (h *handlers) createEndpoint(w http.ResponseWriter, r *http.Request) {
	var ep config.Endpoint
	if err := json.NewDecoder(r.Body).Decode(&ep); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse endpoint", nil)
		return
	}
	if ep.ID == "" {
		ep.ID = uuid.New().String()
	}
	h.mutate(w, func(cfg *config.Configuration) error {
		cfg.Endpoints = append(cfg.Endpoints, ep)
		return nil
	}, "Endpoint created")
}

func (h *handlers) updateEndpoint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var ep config.Endpoint
	if err := json.NewDecoder(r.Body).Decode(&ep); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse endpoint", nil)
		return
	}
	ep.ID = id
	h.mutate(w, func(cfg *config.Configuration) error {
		for i := range cfg.Endpoints {
			if cfg.Endpoints[i].ID == id {
				cfg.Endpoints[i] = ep
				return nil
			}
		}
		return fmt.Errorf("endpoint '%s' not found", id)
	}, "Endpoint updated")
}

func (h *handlers) deleteEndpoint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mutate(w, func(cfg *config.Configuration) error {
		for i := range cfg.Endpoints {
			if cfg.Endpoints[i].ID == id {
				cfg.Endpoints = append(cfg.Endpoints[:i], cfg.Endpoints[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("endpoint '%s' not found", id)
	}, "Endpoint deleted")
}

func (h *handlers) validateConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.parseBody(r)
	if err != nil {
		message, errs := validationPayload(err)
		writeError(w, http.StatusBadRequest, message, errs)
		return
	}
	if err := config.Validate(cfg); err != nil {
		message, errs := validationPayload(err)
		writeError(w, http.StatusBadRequest, message, errs)
		return
	}

	summaries := make([]endpointSummary, len(cfg.Endpoints))
	for i := range cfg.Endpoints {
		summaries[i] = summarize(&cfg.Endpoints[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "valid",
		"message": "Configuration is valid",
		"summary": map[string]any{
			"endpoints_count": len(summaries),
			"endpoints":       summaries,
		},
		"warnings": []string{},
	})
}

func (h *handlers) importConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.parseBody(r)
	if err != nil {
		message, errs := validationPayload(err)
		writeError(w, http.StatusBadRequest, message, errs)
		return
	}
	if err := h.store.Apply(cfg); err != nil {
		message, errs := validationPayload(err)
		writeError(w, http.StatusBadRequest, message, errs)
		return
	}

	summaries := make([]endpointSummary, len(cfg.Endpoints))
	for i := range cfg.Endpoints {
		summaries[i] = summarize(&cfg.Endpoints[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Configuration loaded successfully",
		"summary": map[string]any{
			"endpoints_loaded": len(summaries),
			"endpoints":        summaries,
		},
		"metadata": cfg.Metadata,
	})
}

func (h *handlers) exportConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.store.Current()
	if cfg == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"status":  "error",
			"message": "No configuration currently loaded",
		})
		return
	}

	format := r.URL.Query().Get("format")
	var (
		body        []byte
		err         error
		contentType string
		extension   string
	)
	if format == "json" {
		body, err = config.MarshalJSON(cfg)
		contentType, extension = "application/json", "json"
	} else {
		body, err = config.MarshalYAML(cfg)
		contentType, extension = "application/x-yaml", "yaml"
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render configuration", nil)
		return
	}

	filename := fmt.Sprintf("simulation-config-%s.%s", time.Now().Format("2006-01-02"), extension)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *handlers) parseBody(r *http.Request) (*config.Configuration, error) {
	content, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return config.ParseForContentType(r.Header.Get("Content-Type"), content)
}

// cloneConfig deep-copies a document through its YAML form so mutations
// never touch the live registry's view. A nil input starts an empty 1.0
// document.
func cloneConfig(cfg *config.Configuration) *config.Configuration {
	if cfg == nil {
		return &config.Configuration{Version: config.Version}
	}
	content, err := config.MarshalYAML(cfg)
	if err != nil {
		return &config.Configuration{Version: config.Version}
	}
	clone, err := config.ParseYAML(content)
	if err != nil {
		return &config.Configuration{Version: config.Version}
	}
	return clone
}
