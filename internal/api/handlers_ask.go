package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/docchat/internal/retriever"
)

type askRequest struct {
	Question string `json:"question"`
	K        int    `json:"k"`
}

type askResponse struct {
	SessionID string `json:"session_id"`
	retriever.Result
}

// handleAsk always answers 200 for a well-formed request: failures inside
// the pipeline come back as a result status with a displayable message.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	res := sess.Ask(r.Context(), req.Question, req.K)
	if res.Candidates == nil {
		res.Candidates = []retriever.Candidate{}
	}
	writeJSON(w, http.StatusOK, askResponse{SessionID: sess.ID, Result: res})
}
