package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"quiz-ranking-service/internal/app"
	"quiz-ranking-service/internal/domain"
)

type WSHandler struct {
	service  *app.RankingService
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.RankingService, log *slog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
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

type submitPayload struct {
	QuizID         string `json:"quizId"`
	Correct        int    `json:"correct"`
	Total          int    `json:"total"`
	DurationMillis int64  `json:"durationMillis"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// ranking use cases: result submission, the live leaderboard feed, and the
// caller's attempt history.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	updates, cancelBoard := h.service.Subscribe(r.Context(), limit)
	defer cancelBoard()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	// Every goroutine that sends on the shared channel registers here, so
	// close(send) only happens after the last producer has stopped.
	var pumps sync.WaitGroup

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warn("ws write failed", "err", err)
				return
			}
		}
	}()

	// Once the writer exits nothing drains send, so every producer gives up
	// instead of blocking on a dead connection.
	deliver := func(msg outboundMessage[any]) bool {
		return sendOrDone(send, writerDone, msg)
	}

	pumps.Add(1)
	go func() {
		defer pumps.Done()
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if !deliver(outboundMessage[any]{Type: "leaderboard", Payload: update}) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	var cancelHistory func()
	defer func() {
		if cancelHistory != nil {
			cancelHistory()
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "submit":
			var payload submitPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				deliver(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid submit payload"}})
				continue
			}
			receipt, err := h.service.SubmitAttempt(r.Context(), domain.Submission{
				UserID:         userID,
				QuizID:         payload.QuizID,
				CorrectCount:   payload.Correct,
				TotalQuestions: payload.Total,
				DurationMillis: payload.DurationMillis,
				DisplayName:    displayName,
			})
			if err != nil {
				deliver(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: submitErrorMessage(err)}})
				continue
			}
			deliver(outboundMessage[any]{Type: "submitResult", Payload: receipt})
		case "history":
			if cancelHistory != nil {
				continue
			}
			history, cancel, err := h.service.ObserveHistory(r.Context(), userID)
			if err != nil {
				deliver(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			cancelHistory = cancel
			pumps.Add(1)
			go func() {
				defer pumps.Done()
				for {
					select {
					case attempts, ok := <-history:
						if !ok {
							return
						}
						if !deliver(outboundMessage[any]{Type: "history", Payload: attempts}) {
							return
						}
					case <-closeSignals:
						return
					}
				}
			}()
		default:
			deliver(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	pumps.Wait()
	close(send)
	<-writerDone
}

// sendOrDone queues msg for the writer goroutine, or reports false once the
// writer has exited and the queue will never drain again.
func sendOrDone[T any](send chan<- T, writerDone <-chan struct{}, msg T) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

func submitErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return "not authenticated"
	case errors.Is(err, domain.ErrConflictRetryExhausted):
		return "leaderboard busy, try again"
	default:
		return err.Error()
	}
}
