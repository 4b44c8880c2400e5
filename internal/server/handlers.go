package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lepinkainen/insider-risk-index/pkg/feed"
	"github.com/lepinkainen/insider-risk-index/pkg/sharecodec"
)

// maxShareBody bounds POST /api/share bodies
const maxShareBody = 64 << 10

// invalidLinkMessage is the only detail a client gets about a bad token
const invalidLinkMessage = "link invalid or expired"

type shareResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.config.HealthCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.config.FetchTimeout)
		defer cancel()
		if err := s.config.HealthCheck(ctx); err != nil {
			slog.Warn("Health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unavailable"))
			return
		}
	}
	_, _ = w.Write([]byte("ok"))
}

// feedHandler always answers 200: Build replaces failures with a fallback document
func (s *Server) feedHandler(feedType feed.FeedType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := chi.URLParam(r, "kind")

		ctx, cancel := context.WithTimeout(r.Context(), s.config.FetchTimeout)
		defer cancel()

		doc := s.builder.Build(ctx, feedType, kind)
		if doc.Fallback {
			slog.Warn("Served fallback document", "type", feedType, "kind", doc.Kind, "path", r.URL.Path)
		}

		w.Header().Set("Content-Type", doc.ContentType())
		w.Header().Set("Cache-Control", CacheControl)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(doc.Body); err != nil {
			slog.Debug("Failed to write feed response", "error", err)
		}
	}
}

func (s *Server) handleShareEncode(w http.ResponseWriter, r *http.Request) {
	var data sharecodec.ShareableAssessmentData

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxShareBody))
	if err := decoder.Decode(&data); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	token, err := sharecodec.Encode(&data)
	if err != nil {
		var validationErr *sharecodec.ValidationError
		if errors.As(err, &validationErr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationErr.Error()})
			return
		}
		slog.Error("Failed to encode share token", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to create share link"})
		return
	}

	link, err := sharecodec.ShareURL(s.config.SiteURL, &data)
	if err != nil {
		slog.Error("Failed to build share URL", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to create share link"})
		return
	}

	writeJSON(w, http.StatusOK, shareResponse{Token: token, URL: link})
}

func (s *Server) handleShareDecode(w http.ResponseWriter, r *http.Request) {
	data, err := sharecodec.Decode(chi.URLParam(r, "token"))
	if err != nil {
		slog.Debug("Rejected share token", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalidLinkMessage})
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleIndexNowKey(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.config.IndexNowKey))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}
