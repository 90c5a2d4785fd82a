package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/dgallion1/docmerge/internal/walker"
)

// handleMerge rebuilds the served tree from the configured source. The run
// is detached from the request context so a dropped client does not leave
// a half-copied tree behind.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if s.merger == nil || s.cfg.Source == "" {
		jsonError(w, "merge source not configured", http.StatusServiceUnavailable)
		return
	}

	rep, err := s.merger.Run(context.WithoutCancel(r.Context()), s.cfg.Source, s.root)
	if err != nil {
		// Unreadable source is the caller's problem; a failed copy is ours.
		code := http.StatusInternalServerError
		var travErr *walker.TraversalError
		if errors.As(err, &travErr) {
			code = http.StatusUnprocessableEntity
		}
		writeJSON(w, code, map[string]any{"error": err.Error(), "report": rep})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": rep})
}

func (s *Server) handleMergeStats(w http.ResponseWriter, r *http.Request) {
	if s.merger == nil {
		jsonError(w, "merge stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source": s.cfg.Source,
		"stats":  s.merger.Stats().Snapshot(),
	})
}
