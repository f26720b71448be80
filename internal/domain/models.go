package domain

import (
	"encoding/json"
	"time"
)

// Submission is the raw client-side report of a finished quiz. The service
// assigns the attempt ID and timestamp itself; client clocks are not trusted.
type Submission struct {
	UserID         string
	QuizID         string
	CorrectCount   int
	TotalQuestions int
	DurationMillis int64
	// DisplayName is a client-supplied hint, used only when the profile
	// provider cannot resolve a name for the user.
	DisplayName string
}

// Attempt is one completed quiz run. Attempts are immutable once created and
// feed both the history log and the leaderboard transaction.
type Attempt struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	QuizID         string    `json:"quizId"`
	QuizTitle      string    `json:"quizTitle"`
	CorrectCount   int       `json:"correct"`
	TotalQuestions int       `json:"total"`
	Score          int       `json:"score"`
	DurationMillis int64     `json:"durationMillis"`
	FinishedAt     time.Time `json:"finishedAt"`
}

// DurationSeconds reports the attempt duration in whole seconds.
func (a Attempt) DurationSeconds() int {
	return int(a.DurationMillis / 1000)
}

// MarshalJSON adds the derived durationSeconds field that history views
// render.
func (a Attempt) MarshalJSON() ([]byte, error) {
	type plain Attempt
	return json.Marshal(struct {
		plain
		DurationSeconds int `json:"durationSeconds"`
	}{plain(a), a.DurationSeconds()})
}

// Aggregate is one user's cumulative leaderboard standing. It is the only
// shared mutable record in the system; every write goes through the ranking
// transaction, which keeps TotalScore equal to the sum of BestByQuiz and
// QuizzesCounted equal to the number of positive entries in it.
type Aggregate struct {
	UserID         string         `json:"userId"`
	DisplayName    string         `json:"displayName"`
	TotalScore     int            `json:"score"`
	QuizzesCounted int            `json:"quizzes"`
	BestByQuiz     map[string]int `json:"best"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy so snapshots can be handed out without aliasing
// the best-score map.
func (a Aggregate) Clone() Aggregate {
	out := a
	out.BestByQuiz = make(map[string]int, len(a.BestByQuiz))
	for quizID, best := range a.BestByQuiz {
		out.BestByQuiz[quizID] = best
	}
	return out
}

// RankEntry is one row of the ranked leaderboard view.
type RankEntry struct {
	UserID         string `json:"userId"`
	DisplayName    string `json:"displayName"`
	Score          int    `json:"score"`
	Rank           int    `json:"rank"`
	QuizzesCounted int    `json:"quizzes"`
}

// Leaderboard is a ranked snapshot of all aggregates, limited for display.
type Leaderboard struct {
	Entries   []RankEntry `json:"entries"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// QuizTopEntry is one user's best recorded result on a single quiz. These are
// side records, eventually consistent with the authoritative aggregates.
type QuizTopEntry struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// Quiz describes a browsable quiz. Question content lives with the quiz-taking
// flow; the ranking service only needs the metadata.
type Quiz struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Difficulty       string    `json:"difficulty"`
	Active           bool      `json:"isActive"`
	TimeLimitSeconds int       `json:"timeLimitSeconds"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// SubmitReceipt summarizes the outcome of a submission for the caller.
type SubmitReceipt struct {
	AttemptID      string `json:"attemptId"`
	Score          int    `json:"score"`
	Improved       bool   `json:"improved"`
	NewBest        int    `json:"newBest"`
	TotalScore     int    `json:"totalScore"`
	QuizzesCounted int    `json:"quizzes"`
}
