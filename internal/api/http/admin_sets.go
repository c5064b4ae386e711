package http

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/classware/quizdesk/internal/audit"
	"github.com/classware/quizdesk/internal/quiz"
)

func setIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "setID"), 10, 64)
}

// GET /admin/sets
func ListQuestionSetsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.QueryContext(r.Context(),
			`SELECT id, name, quiz_category, description, is_active
			 FROM question_sets ORDER BY quiz_category, name`)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()
		out := []quiz.QuestionSet{}
		for rows.Next() {
			var qs quiz.QuestionSet
			if err := rows.Scan(&qs.ID, &qs.Name, &qs.Category, &qs.Description, &qs.IsActive); err != nil {
				errJSON(w, http.StatusInternalServerError, err.Error())
				return
			}
			out = append(out, qs)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /admin/sets: new sets start inactive; activation is explicit.
func CreateQuestionSetHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name        string `json:"name" validate:"required,max=64"`
			Category    string `json:"quiz_category" validate:"required,max=64"`
			Description string `json:"description"`
		}
		if err := decodeValid(r, &req); err != nil {
			errJSON(w, http.StatusBadRequest, "name and quiz_category required")
			return
		}
		var id int64
		err := db.QueryRowContext(r.Context(),
			`INSERT INTO question_sets (name, quiz_category, description, is_active)
			 VALUES ($1,$2,$3,FALSE) RETURNING id`,
			req.Name, req.Category, req.Description).Scan(&id)
		if err != nil {
			errJSON(w, http.StatusConflict, "could not create set (name taken in category?)")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
	}
}

// POST /admin/sets/{setID}/activate: atomically swaps the active set for
// the category.
func ActivateQuestionSetHandler(store *quiz.SQLStore, events *audit.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := setIDParam(r)
		if err != nil {
			errJSON(w, http.StatusBadRequest, "bad set id")
			return
		}
		if err := store.ActivateQuestionSet(r.Context(), id); err != nil {
			if errors.Is(err, quiz.ErrSetNotFound) {
				errJSON(w, http.StatusNotFound, "question set not found")
				return
			}
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := events.Append(r.Context(), audit.TypeSetActivated, strconv.FormatInt(id, 10), nil); err != nil {
			log.Printf("event log append failed: %v", err)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "activated"})
	}
}

// POST /admin/sets/{setID}/deactivate
func DeactivateQuestionSetHandler(store *quiz.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := setIDParam(r)
		if err != nil {
			errJSON(w, http.StatusBadRequest, "bad set id")
			return
		}
		if err := store.DeactivateQuestionSet(r.Context(), id); err != nil {
			if errors.Is(err, quiz.ErrSetNotFound) {
				errJSON(w, http.StatusNotFound, "question set not found")
				return
			}
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
	}
}

// DELETE /admin/sets/{setID}: cascades to its questions.
func DeleteQuestionSetHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := setIDParam(r)
		if err != nil {
			errJSON(w, http.StatusBadRequest, "bad set id")
			return
		}
		res, err := db.ExecContext(r.Context(), `DELETE FROM question_sets WHERE id=$1`, id)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			errJSON(w, http.StatusNotFound, "question set not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
