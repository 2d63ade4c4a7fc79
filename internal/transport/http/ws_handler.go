package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

type WSHandler struct {
	service  *app.SessionService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Position  int   `json:"position"`
	AnswerIDs []int `json:"answerIds"`
}

type chatPayload struct {
	MessageBody string `json:"messageBody"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// endOfStream is queued after the last session event; the writer turns it
// into a close frame instead of sending it.
var endOfStream = outboundMessage[any]{Type: "endOfStream"}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Kind: domain.KindOf(err)}}
}

// ServeWS streams session events to the client. Connections that carry a
// playerId may also submit answers and chat over the socket; without one the
// stream is read-only.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID, err := strconv.Atoi(r.URL.Query().Get("sessionId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing or invalid sessionId")
		return
	}
	playerID := 0
	if raw := r.URL.Query().Get("playerId"); raw != "" {
		if playerID, err = strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid playerId")
			return
		}
		joined, err := h.service.PlayerSessionID(playerID)
		if err != nil || joined != sessionID {
			writeError(w, http.StatusNotFound, domain.ErrPlayerNotFound.Error())
			return
		}
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	// Only this goroutine writes data frames to conn.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if msg.Type == endOfStream.Type {
				// Session ended: close the socket, which also unblocks the read loop.
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(time.Second))
				_ = conn.SetReadDeadline(time.Now().Add(time.Second))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", "session_id", sessionID, "err", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					select {
					case send <- endOfStream:
					case <-writerDone:
					case <-closeSignals:
					}
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if playerID == 0 {
			push(errorMessage(domain.InvalidInput("read-only stream: connect with a playerId to send messages")))
			continue
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(errorMessage(domain.InvalidInput("invalid answer payload")))
				continue
			}
			if err := h.service.SubmitAnswers(r.Context(), playerID, payload.Position, payload.AnswerIDs); err != nil {
				push(errorMessage(err))
				continue
			}
			push(outboundMessage[any]{Type: "answerAccepted", Payload: payload})
		case "chat":
			var payload chatPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(errorMessage(domain.InvalidInput("invalid chat payload")))
				continue
			}
			if err := h.service.SendChat(r.Context(), playerID, payload.MessageBody); err != nil {
				push(errorMessage(err))
				continue
			}
			push(outboundMessage[any]{Type: "chatSent", Payload: payload})
		default:
			push(errorMessage(domain.InvalidInput("unsupported message type %q", inbound.Type)))
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
