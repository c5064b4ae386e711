package http

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/classware/quizdesk/internal/quiz"
)

type questionPayload struct {
	SetID        *int64 `json:"question_set_id"`
	Category     string `json:"quiz_category" validate:"required"`
	Type         string `json:"type" validate:"required,oneof=mcq true_false image"`
	Text         string `json:"ques" validate:"required,max=350"`
	OptionA      string `json:"a" validate:"required,max=100"`
	OptionB      string `json:"b" validate:"required,max=100"`
	OptionC      string `json:"c" validate:"max=100"`
	OptionD      string `json:"d" validate:"max=100"`
	Answer       string `json:"ans" validate:"required,max=100"`
	TimeLimitSec int    `json:"time_limit" validate:"min=5,max=600"`
	Points       int    `json:"points" validate:"min=1"`
	Explanation  string `json:"explanation"`
	MediaKey     string `json:"media_key"`
}

// checkOptions enforces the per-type option shape: true/false questions
// carry exactly the two A/B options, the rest up to four.
func (p questionPayload) checkOptions() error {
	if p.Type == quiz.TypeTrueFalse && (p.OptionC != "" || p.OptionD != "") {
		return errors.New("true/false questions take exactly two options")
	}
	if p.OptionC == "" && p.OptionD != "" {
		return errors.New("option d requires option c")
	}
	for _, o := range []string{p.OptionA, p.OptionB, p.OptionC, p.OptionD} {
		if o == p.Answer {
			return nil
		}
	}
	return errors.New("answer must be one of the options")
}

// GET /admin/questions
func ListQuestionsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.QueryContext(r.Context(),
			`SELECT q_id, question_set_id, quiz_category, qtype, ques, a, b,
			        COALESCE(c,''), COALESCE(d,''), ans, time_limit, points,
			        COALESCE(explanation,''), COALESCE(media_key,'')
			 FROM questions ORDER BY quiz_category, q_id ASC`)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()
		out := []quiz.Question{}
		for rows.Next() {
			var q quiz.Question
			var setID sql.NullInt64
			if err := rows.Scan(&q.ID, &setID, &q.Category, &q.Type, &q.Text, &q.OptionA,
				&q.OptionB, &q.OptionC, &q.OptionD, &q.Answer, &q.TimeLimitSec, &q.Points,
				&q.Explanation, &q.MediaKey); err != nil {
				errJSON(w, http.StatusInternalServerError, err.Error())
				return
			}
			if setID.Valid {
				q.SetID = &setID.Int64
			}
			out = append(out, q)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /admin/questions
func CreateQuestionHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p questionPayload
		if err := decodeValid(r, &p); err != nil {
			errJSON(w, http.StatusBadRequest, "invalid question payload")
			return
		}
		if err := p.checkOptions(); err != nil {
			errJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		id, err := insertQuestion(r.Context(), db, p)
		if err != nil {
			errJSON(w, http.StatusConflict, "could not add question (duplicate text?)")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int64{"q_id": id})
	}
}

// PUT /admin/questions/{qid}
func UpdateQuestionHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qid, err := qidParam(r)
		if err != nil {
			errJSON(w, http.StatusBadRequest, "bad question id")
			return
		}
		var p questionPayload
		if err := decodeValid(r, &p); err != nil {
			errJSON(w, http.StatusBadRequest, "invalid question payload")
			return
		}
		if err := p.checkOptions(); err != nil {
			errJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		res, err := db.ExecContext(r.Context(),
			`UPDATE questions SET question_set_id=$1, quiz_category=$2, qtype=$3, ques=$4,
			        a=$5, b=$6, c=$7, d=$8, ans=$9, time_limit=$10, points=$11,
			        explanation=$12, media_key=$13
			 WHERE q_id=$14`,
			p.SetID, p.Category, p.Type, p.Text, p.OptionA, p.OptionB,
			nullEmpty(p.OptionC), nullEmpty(p.OptionD), p.Answer, p.TimeLimitSec, p.Points,
			nullEmpty(p.Explanation), nullEmpty(p.MediaKey), qid)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			errJSON(w, http.StatusNotFound, "question not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

// DELETE /admin/questions/{qid}
func DeleteQuestionHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qid, err := qidParam(r)
		if err != nil {
			errJSON(w, http.StatusBadRequest, "bad question id")
			return
		}
		res, err := db.ExecContext(r.Context(), `DELETE FROM questions WHERE q_id=$1`, qid)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			errJSON(w, http.StatusNotFound, "question not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// DELETE /admin/questions?category=...: clear a category, or everything
// when no category is given.
func DeleteAllQuestionsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := r.URL.Query().Get("category")
		var res sql.Result
		var err error
		if category == "" {
			res, err = db.ExecContext(r.Context(), `DELETE FROM questions`)
		} else {
			res, err = db.ExecContext(r.Context(), `DELETE FROM questions WHERE quiz_category=$1`, category)
		}
		if err != nil {
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		n, _ := res.RowsAffected()
		writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
	}
}

// POST /admin/questions/bulk: multipart CSV upload.
// Columns: Question,A,B,C,D,Answer,Time[,Category[,SetID]]
func BulkUploadQuestionsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile("file")
		if err != nil {
			errJSON(w, http.StatusBadRequest, "file required")
			return
		}
		defer f.Close()

		cr := csv.NewReader(f)
		cr.TrimLeadingSpace = true
		if _, err := cr.Read(); err != nil { // header
			errJSON(w, http.StatusBadRequest, "empty file")
			return
		}
		created := 0
		for {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errJSON(w, http.StatusBadRequest, "bad csv: "+err.Error())
				return
			}
			if len(rec) < 6 {
				continue
			}
			p := questionPayload{
				Type:         quiz.TypeMCQ,
				Text:         strings.TrimSpace(rec[0]),
				OptionA:      strings.TrimSpace(rec[1]),
				OptionB:      strings.TrimSpace(rec[2]),
				OptionC:      strings.TrimSpace(rec[3]),
				OptionD:      strings.TrimSpace(rec[4]),
				Answer:       strings.TrimSpace(rec[5]),
				TimeLimitSec: 60,
				Points:       1,
				Category:     quiz.DefaultCategory,
			}
			if p.Text == "" || p.OptionA == "" || p.OptionB == "" || p.Answer == "" {
				continue
			}
			if len(rec) > 6 {
				if n, err := strconv.Atoi(strings.TrimSpace(rec[6])); err == nil && n > 0 {
					p.TimeLimitSec = n
				}
			}
			if len(rec) > 7 && strings.TrimSpace(rec[7]) != "" {
				p.Category = strings.TrimSpace(rec[7])
			}
			if len(rec) > 8 {
				if id, err := strconv.ParseInt(strings.TrimSpace(rec[8]), 10, 64); err == nil {
					p.SetID = &id
				}
			}
			// Skip duplicates by question text, same as single-add.
			var exists int
			err = db.QueryRowContext(r.Context(), `SELECT 1 FROM questions WHERE ques=$1`, p.Text).Scan(&exists)
			if err == nil {
				continue
			}
			if !errors.Is(err, sql.ErrNoRows) {
				errJSON(w, http.StatusInternalServerError, err.Error())
				return
			}
			if _, err := insertQuestion(r.Context(), db, p); err != nil {
				errJSON(w, http.StatusInternalServerError, err.Error())
				return
			}
			created++
		}
		writeJSON(w, http.StatusOK, map[string]int{"created": created})
	}
}

// GET /admin/questions/export: CSV download.
func ExportQuestionsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.QueryContext(r.Context(),
			`SELECT q_id, quiz_category, qtype, ques, a, b, COALESCE(c,''), COALESCE(d,''),
			        ans, time_limit, points
			 FROM questions ORDER BY quiz_category, q_id ASC`)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename=quiz_questions.csv`)
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"Question ID", "Category", "Type", "Question", "Option A", "Option B", "Option C", "Option D", "Correct Answer", "Time Limit", "Points"})
		for rows.Next() {
			var id int64
			var category, qtype, ques, a, b, c, d, ans string
			var limit, points int
			if err := rows.Scan(&id, &category, &qtype, &ques, &a, &b, &c, &d, &ans, &limit, &points); err != nil {
				return
			}
			_ = cw.Write([]string{
				strconv.FormatInt(id, 10), category, qtype, ques, a, b, c, d, ans,
				strconv.Itoa(limit), strconv.Itoa(points),
			})
		}
		cw.Flush()
	}
}

func insertQuestion(ctx context.Context, db *sql.DB, p questionPayload) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO questions (question_set_id, quiz_category, qtype, ques, a, b, c, d, ans,
		                        time_limit, points, explanation, media_key)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING q_id`,
		p.SetID, p.Category, p.Type, p.Text, p.OptionA, p.OptionB,
		nullEmpty(p.OptionC), nullEmpty(p.OptionD), p.Answer, p.TimeLimitSec, p.Points,
		nullEmpty(p.Explanation), nullEmpty(p.MediaKey)).Scan(&id)
	return id, err
}

func nullEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
