package http

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/classware/quizdesk/internal/quiz"
)

// GET /admin/sections
func ListSectionsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.QueryContext(r.Context(), `SELECT id, name FROM sections ORDER BY name`)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()
		out := []quiz.Section{}
		for rows.Next() {
			var s quiz.Section
			if err := rows.Scan(&s.ID, &s.Name); err != nil {
				errJSON(w, http.StatusInternalServerError, err.Error())
				return
			}
			out = append(out, s)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /admin/sections: section names double as quiz categories.
func CreateSectionHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name" validate:"required,max=64"`
		}
		if err := decodeValid(r, &req); err != nil {
			errJSON(w, http.StatusBadRequest, "name required")
			return
		}
		var id int64
		err := db.QueryRowContext(r.Context(),
			`INSERT INTO sections (name) VALUES ($1) RETURNING id`, req.Name).Scan(&id)
		if err != nil {
			errJSON(w, http.StatusConflict, "could not create section (name taken?)")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
	}
}

// DELETE /admin/sections/{sectionID}: members fall back to no section
// (and therefore the General quiz).
func DeleteSectionHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "sectionID"), 10, 64)
		if err != nil {
			errJSON(w, http.StatusBadRequest, "bad section id")
			return
		}
		res, err := db.ExecContext(r.Context(), `DELETE FROM sections WHERE id=$1`, id)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			errJSON(w, http.StatusNotFound, "section not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// PUT /admin/students/{userID}/section {"section_id": 3}: null clears.
func AssignSectionHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
		if err != nil {
			errJSON(w, http.StatusBadRequest, "bad user id")
			return
		}
		var req struct {
			SectionID *int64 `json:"section_id"`
		}
		if err := decodeValid(r, &req); err != nil {
			errJSON(w, http.StatusBadRequest, "bad json")
			return
		}
		res, err := db.ExecContext(r.Context(),
			`UPDATE users SET section_id=$1 WHERE id=$2 AND is_admin=FALSE`, req.SectionID, uid)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			errJSON(w, http.StatusNotFound, "student not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
	}
}
