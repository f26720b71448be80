package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-ranking-service/internal/app"
	"quiz-ranking-service/internal/domain"
	"quiz-ranking-service/internal/infra/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.RankingService) {
	t.Helper()
	catalog := memory.NewQuizCatalog(memory.NewStaticQuizLoader([]domain.Quiz{
		{ID: "quiz-1", Title: "General Knowledge", Active: true},
	}), time.Minute)
	service := app.NewRankingService(
		memory.NewAggregateStore(),
		memory.NewAttemptLog(),
		memory.NewTopScoreStore(),
		memory.NewProfiles(),
		catalog,
		app.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	wsHandler := NewWSHandler(service, log)
	api := NewAPI(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/leaderboard", api.Leaderboard)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, service
}

func TestWebSocketSubmitFlow(t *testing.T) {
	server, _ := newTestServer(t)

	u := "ws" + server.URL[len("http"):] + "/ws?userId=u1&name=Alice"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The current board arrives first.
	msgType, _ := readNext(conn, t, "leaderboard")
	if msgType != "leaderboard" {
		t.Fatalf("expected leaderboard, got %s", msgType)
	}

	submit := map[string]any{
		"type": "submit",
		"payload": map[string]any{
			"quizId":         "quiz-1",
			"correct":        8,
			"total":          10,
			"durationMillis": 45000,
		},
	}
	if err := conn.WriteJSON(submit); err != nil {
		t.Fatalf("write submit: %v", err)
	}

	resultSeen := false
	boardSeen := false
	for i := 0; i < 3; i++ {
		typ, payload := readNext(conn, t, "")
		switch typ {
		case "submitResult":
			resultSeen = true
			var receipt struct {
				Score int `json:"score"`
			}
			if err := json.Unmarshal(payload, &receipt); err != nil {
				t.Fatalf("decode receipt: %v", err)
			}
			if receipt.Score != 80 {
				t.Fatalf("expected score 80, got %d", receipt.Score)
			}
		case "leaderboard":
			boardSeen = true
		}
		if resultSeen && boardSeen {
			break
		}
	}
	if !resultSeen || !boardSeen {
		t.Fatalf("expected submitResult and leaderboard, got submitResult=%v leaderboard=%v", resultSeen, boardSeen)
	}
}

func TestWebSocketHistorySubscription(t *testing.T) {
	server, service := newTestServer(t)

	if _, err := service.SubmitAttempt(context.Background(), domain.Submission{
		UserID: "u1", QuizID: "quiz-1", CorrectCount: 8, TotalQuestions: 10,
		DurationMillis: 45000, DisplayName: "Alice",
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	u := "ws" + server.URL[len("http"):] + "/ws?userId=u1&name=Alice"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readNext(conn, t, "leaderboard")

	if err := conn.WriteJSON(map[string]any{"type": "history"}); err != nil {
		t.Fatalf("write history: %v", err)
	}
	_, payload := readNext(conn, t, "history")
	var attempts []struct {
		QuizID          string `json:"quizId"`
		DurationSeconds int    `json:"durationSeconds"`
	}
	if err := json.Unmarshal(payload, &attempts); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
	if attempts[0].QuizID != "quiz-1" || attempts[0].DurationSeconds != 45 {
		t.Fatalf("expected quiz-1 lasting 45s, got %+v", attempts[0])
	}
}

func TestWriterExitUnblocksProducers(t *testing.T) {
	send := make(chan outboundMessage[any], 1)
	writerDone := make(chan struct{})

	send <- outboundMessage[any]{Type: "leaderboard"}
	close(writerDone)

	done := make(chan bool, 1)
	go func() {
		done <- sendOrDone(send, writerDone, outboundMessage[any]{Type: "leaderboard"})
	}()
	select {
	case delivered := <-done:
		if delivered {
			t.Fatalf("expected delivery to fail once the writer exited")
		}
	case <-time.After(time.Second):
		t.Fatalf("producer blocked on a full queue with no writer")
	}
}

func TestWebSocketRequiresUserID(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	server, service := newTestServer(t)

	if _, err := service.SubmitAttempt(context.Background(), domain.Submission{
		UserID: "u1", QuizID: "quiz-1", CorrectCount: 10, TotalQuestions: 10, DisplayName: "Alice",
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	resp, err := http.Get(server.URL + "/leaderboard?limit=5")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected json, got %s", got)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, json.RawMessage) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
