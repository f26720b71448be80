package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"quiz-ranking-service/internal/app"
)

// API serves the read-only JSON endpoints next to the websocket.
type API struct {
	service *app.RankingService
}

func NewAPI(service *app.RankingService) *API {
	return &API{service: service}
}

// Leaderboard handles GET /leaderboard?limit=N.
func (a *API) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, a.service.TopN(r.Context(), limit))
}

// Quizzes handles GET /quizzes.
func (a *API) Quizzes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.service.Quizzes(r.Context()))
}

// TopScores handles GET /top?quizId=...&limit=N.
func (a *API) TopScores(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, a.service.TopScores(r.Context(), quizID, limit))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
