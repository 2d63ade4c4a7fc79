package http

import (
	"net/http"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

type playerHandler struct {
	service *app.SessionService
}

type joinRequest struct {
	SessionID int    `json:"sessionId"`
	Name      string `json:"name"`
}

type submitRequest struct {
	AnswerIDs []int `json:"answerIds"`
}

type chatRequest struct {
	Message struct {
		MessageBody string `json:"messageBody"`
	} `json:"message"`
}

// join handles POST /v1/player/join
func (h *playerHandler) join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	id, err := h.service.Join(r.Context(), req.SessionID, req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"playerId": id})
}

// status handles GET /v1/player/{playerId}
func (h *playerHandler) status(w http.ResponseWriter, r *http.Request) {
	playerID, err := intParam(r, "playerId")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status, err := h.service.PlayerStatus(r.Context(), playerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// question handles GET /v1/player/{playerId}/question/{position}
func (h *playerHandler) question(w http.ResponseWriter, r *http.Request) {
	playerID, position, err := playerAndPosition(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	info, err := h.service.QuestionInfo(r.Context(), playerID, position)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// submit handles PUT /v1/player/{playerId}/question/{position}/answer
func (h *playerHandler) submit(w http.ResponseWriter, r *http.Request) {
	playerID, position, err := playerAndPosition(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.service.SubmitAnswers(r.Context(), playerID, position, req.AnswerIDs); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// questionResults handles GET /v1/player/{playerId}/question/{position}/results
func (h *playerHandler) questionResults(w http.ResponseWriter, r *http.Request) {
	playerID, position, err := playerAndPosition(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	results, err := h.service.QuestionResults(r.Context(), playerID, position)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// results handles GET /v1/player/{playerId}/results
func (h *playerHandler) results(w http.ResponseWriter, r *http.Request) {
	playerID, err := intParam(r, "playerId")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	results, err := h.service.PlayerResults(r.Context(), playerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// viewChat handles GET /v1/player/{playerId}/chat
func (h *playerHandler) viewChat(w http.ResponseWriter, r *http.Request) {
	playerID, err := intParam(r, "playerId")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	msgs, err := h.service.ViewChat(r.Context(), playerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.ChatMessage{"messages": msgs})
}

// sendChat handles POST /v1/player/{playerId}/chat
func (h *playerHandler) sendChat(w http.ResponseWriter, r *http.Request) {
	playerID, err := intParam(r, "playerId")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.service.SendChat(r.Context(), playerID, req.Message.MessageBody); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func playerAndPosition(r *http.Request) (int, int, error) {
	playerID, err := intParam(r, "playerId")
	if err != nil {
		return 0, 0, err
	}
	position, err := intParam(r, "position")
	if err != nil {
		return 0, 0, err
	}
	return playerID, position, nil
}
