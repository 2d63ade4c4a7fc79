package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

type adminHandler struct {
	service *app.SessionService
}

type startSessionRequest struct {
	AutoStartNum int `json:"autoStartNum"`
}

type startSessionResponse struct {
	SessionID int    `json:"sessionId"`
	RunID     string `json:"runId"`
}

type updateStateRequest struct {
	Action string `json:"action"`
}

// startSession handles POST /v1/admin/quiz/{quizId}/session/start
func (h *adminHandler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	id, err := h.service.StartSession(r.Context(), ownerID(r.Context()), mux.Vars(r)["quizId"], req.AutoStartNum)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, startSessionResponse{SessionID: id, RunID: h.service.RunID()})
}

// listSessions handles GET /v1/admin/quiz/{quizId}/sessions
func (h *adminHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListSessions(r.Context(), ownerID(r.Context()), mux.Vars(r)["quizId"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// updateState handles PUT /v1/admin/quiz/{quizId}/session/{sessionId}
func (h *adminHandler) updateState(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req updateStateRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.service.UpdateSessionState(r.Context(), ownerID(r.Context()), mux.Vars(r)["quizId"], sessionID, req.Action); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// status handles GET /v1/admin/quiz/{quizId}/session/{sessionId}
func (h *adminHandler) status(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status, err := h.service.SessionStatus(r.Context(), ownerID(r.Context()), mux.Vars(r)["quizId"], sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// results handles GET /v1/admin/quiz/{quizId}/session/{sessionId}/results
func (h *adminHandler) results(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	results, err := h.service.SessionResults(r.Context(), ownerID(r.Context()), mux.Vars(r)["quizId"], sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// resultsCSV handles GET /v1/admin/quiz/{quizId}/session/{sessionId}/results/csv
func (h *adminHandler) resultsCSV(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	url, err := h.service.SessionResultsCSV(r.Context(), ownerID(r.Context()), mux.Vars(r)["quizId"], sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// archivedResults handles GET /v1/admin/quiz/{quizId}/session/{sessionId}/archive?runId=
// An absent runId reads the current run.
func (h *adminHandler) archivedResults(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	runID := r.URL.Query().Get("runId")
	archived, err := h.service.ArchivedResults(r.Context(), ownerID(r.Context()), mux.Vars(r)["quizId"], runID, sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, archived)
}

func sessionIDParam(r *http.Request) (int, error) {
	return intParam(r, "sessionId")
}

func intParam(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		return 0, domain.InvalidInput("invalid %s", name)
	}
	return v, nil
}
