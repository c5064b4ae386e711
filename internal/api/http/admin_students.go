package http

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func userIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
}

type studentRow struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Marks    *int    `json:"marks"`
	Section  *string `json:"section"`
}

// GET /admin/students: ordered by legacy marks, best first.
func ListStudentsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.QueryContext(r.Context(),
			`SELECT u.id, u.username, u.email, u.marks, s.name
			 FROM users u LEFT JOIN sections s ON s.id = u.section_id
			 WHERE u.is_admin=FALSE
			 ORDER BY COALESCE(u.marks, 0) DESC, u.username`)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()
		out := []studentRow{}
		for rows.Next() {
			var sr studentRow
			var marks sql.NullInt64
			var section sql.NullString
			if err := rows.Scan(&sr.ID, &sr.Username, &sr.Email, &marks, &section); err != nil {
				errJSON(w, http.StatusInternalServerError, err.Error())
				return
			}
			if marks.Valid {
				m := int(marks.Int64)
				sr.Marks = &m
			}
			if section.Valid {
				sr.Section = &section.String
			}
			out = append(out, sr)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /admin/students: manual add.
func AddStudentHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username" validate:"required,min=2,max=64"`
			Email    string `json:"email" validate:"required,email"`
			Password string `json:"password" validate:"required,min=6"`
		}
		if err := decodeValid(r, &req); err != nil {
			errJSON(w, http.StatusBadRequest, "invalid student payload")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		var id int64
		err = db.QueryRowContext(r.Context(),
			`INSERT INTO users (username, email, password_hash, is_admin) VALUES ($1,$2,$3,FALSE) RETURNING id`,
			req.Username, req.Email, string(hash)).Scan(&id)
		if err != nil {
			errJSON(w, http.StatusConflict, "could not add student (username or email taken?)")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
	}
}

// DELETE /admin/students/{userID}
func DeleteStudentHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := userIDParam(r)
		if err != nil {
			errJSON(w, http.StatusBadRequest, "bad user id")
			return
		}
		res, err := db.ExecContext(r.Context(),
			`DELETE FROM users WHERE id=$1 AND is_admin=FALSE`, uid)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			errJSON(w, http.StatusNotFound, "student not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// POST /admin/students/{userID}/reset: deletes the attempt rows and
// clears legacy marks so the student can retake.
func ResetStudentHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := userIDParam(r)
		if err != nil {
			errJSON(w, http.StatusBadRequest, "bad user id")
			return
		}
		if err := resetStudents(r, db, &uid); err != nil {
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	}
}

// POST /admin/students/reset: clears every student's history.
func ResetAllStudentsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := resetStudents(r, db, nil); err != nil {
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	}
}

func resetStudents(r *http.Request, db *sql.DB, uid *int64) error {
	ctx := r.Context()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if uid != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM quiz_scores WHERE user_id=$1`, *uid); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM responses WHERE user_id=$1`, *uid); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET marks=NULL WHERE id=$1 AND is_admin=FALSE`, *uid); err != nil {
			return err
		}
	} else {
		if _, err := tx.ExecContext(ctx, `DELETE FROM quiz_scores`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM responses`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET marks=NULL WHERE is_admin=FALSE`); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// POST /admin/students/bulk: multipart CSV with username,email[,section]
// columns. New accounts get generated passwords, returned once in the
// response for the admin to hand out.
func BulkImportStudentsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile("file")
		if err != nil {
			errJSON(w, http.StatusBadRequest, "file required")
			return
		}
		defer f.Close()

		cr := csv.NewReader(f)
		cr.TrimLeadingSpace = true
		hdr, err := cr.Read()
		if err != nil {
			errJSON(w, http.StatusBadRequest, "empty file")
			return
		}
		idx := map[string]int{}
		for i, h := range hdr {
			idx[strings.ToLower(strings.TrimSpace(h))] = i
		}
		for _, k := range []string{"username", "email"} {
			if _, ok := idx[k]; !ok {
				errJSON(w, http.StatusBadRequest, "missing column: "+k)
				return
			}
		}

		type created struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		out := []created{}
		for {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errJSON(w, http.StatusBadRequest, "bad csv: "+err.Error())
				return
			}
			if len(rec) <= idx["username"] || len(rec) <= idx["email"] {
				continue
			}
			username := strings.TrimSpace(rec[idx["username"]])
			email := strings.TrimSpace(rec[idx["email"]])
			if username == "" || email == "" {
				continue
			}
			var exists int
			err = db.QueryRowContext(r.Context(),
				`SELECT 1 FROM users WHERE username=$1 OR email=$2`, username, email).Scan(&exists)
			if err == nil {
				continue // duplicate
			}
			if !errors.Is(err, sql.ErrNoRows) {
				errJSON(w, http.StatusInternalServerError, err.Error())
				return
			}
			password := uuid.NewString()[:8]
			hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
			if err != nil {
				errJSON(w, http.StatusInternalServerError, err.Error())
				return
			}
			var sectionID any
			if i, ok := idx["section"]; ok && strings.TrimSpace(rec[i]) != "" {
				name := strings.TrimSpace(rec[i])
				var sid int64
				if err := db.QueryRowContext(r.Context(),
					`SELECT id FROM sections WHERE name=$1`, name).Scan(&sid); err == nil {
					sectionID = sid
				}
			}
			if _, err := db.ExecContext(r.Context(),
				`INSERT INTO users (username, email, password_hash, is_admin, section_id)
				 VALUES ($1,$2,$3,FALSE,$4)`,
				username, email, string(hash), sectionID); err != nil {
				errJSON(w, http.StatusInternalServerError, err.Error())
				return
			}
			out = append(out, created{Username: username, Email: email, Password: password})
		}
		writeJSON(w, http.StatusOK, map[string]any{"created": out})
	}
}

// GET /admin/scores/export: CSV of every finalized attempt.
func ExportScoresHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.QueryContext(r.Context(),
			`SELECT u.username, u.email, q.quiz_category, q.status, q.score
			 FROM quiz_scores q JOIN users u ON u.id = q.user_id
			 ORDER BY q.quiz_category, q.score DESC`)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename=student_scores.csv`)
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"Username", "Email", "Category", "Status", "Score"})
		for rows.Next() {
			var username, email, category, status string
			var score int
			if err := rows.Scan(&username, &email, &category, &status, &score); err != nil {
				return
			}
			_ = cw.Write([]string{username, email, category, status, strconv.Itoa(score)})
		}
		cw.Flush()
	}
}
