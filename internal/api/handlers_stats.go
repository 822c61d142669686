package api

import "net/http"

func (s *Server) handleAnswerStats(w http.ResponseWriter, r *http.Request) {
	if s.answers == nil {
		jsonError(w, "answer stats unavailable", http.StatusServiceUnavailable)
		return
	}

	stats := s.answers.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"extractor": s.cfg.Extractor,
		"embedder":  s.answers.Embedder().Model(),
		"window":    stats.Window().String(),
		"stats":     stats.Snapshot(),
	})
}
