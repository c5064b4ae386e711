package http

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/classware/quizdesk/internal/analytics"
	"github.com/classware/quizdesk/internal/auth"
	"github.com/classware/quizdesk/internal/quiz"
)

// GET /home: role-aware landing payload. Students get the podium and
// whether a quiz is mid-flight, admins get the dashboard counts.
func HomeHandler(svc *quiz.Service, stats *analytics.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := student(r, w)
		if !ok {
			return
		}
		if st.IsAdmin {
			counts, err := stats.DashboardCounts(r.Context())
			if err != nil {
				errJSON(w, http.StatusInternalServerError, "dashboard lookup failed")
				return
			}
			top, err := stats.Leaderboard(r.Context(), 3)
			if err != nil {
				errJSON(w, http.StatusInternalServerError, "dashboard lookup failed")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"role":         "admin",
				"counts":       counts,
				"top_students": top,
			})
			return
		}
		leaders, err := stats.Leaderboard(r.Context(), 3)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, "leaderboard lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"role":        "student",
			"username":    st.Username,
			"marks":       st.Marks,
			"leaderboard": leaders,
			"quiz_live":   svc.HasLiveSession(st.ID),
		})
	}
}

// GET /leaderboard?limit=N
func LeaderboardHandler(stats *analytics.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				limit = n
			}
		}
		leaders, err := stats.Leaderboard(r.Context(), limit)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, "leaderboard lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, leaders)
	}
}

// GET /admin/sets/{setID}/stats: per-question correctness and distractor
// tallies.
func QuestionStatsHandler(stats *analytics.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := setIDParam(r)
		if err != nil {
			errJSON(w, http.StatusBadRequest, "bad set id")
			return
		}
		out, err := stats.QuestionStats(r.Context(), id)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, "stats lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// PUT /me/preferences {"shuffle_questions": true}: applies to the next
// quiz start, never a live session.
func PreferencesHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := auth.StudentFromContext(r.Context())
		if !ok {
			errJSON(w, http.StatusUnauthorized, "not logged in")
			return
		}
		var req struct {
			Shuffle bool `json:"shuffle_questions"`
		}
		if err := decodeValid(r, &req); err != nil {
			errJSON(w, http.StatusBadRequest, "bad json")
			return
		}
		if _, err := db.ExecContext(r.Context(),
			`UPDATE users SET shuffle_questions=$1 WHERE id=$2`, req.Shuffle, st.ID); err != nil {
			errJSON(w, http.StatusInternalServerError, "could not save preference")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"shuffle_questions": req.Shuffle})
	}
}
