package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/classware/quizdesk/internal/analytics"
	api "github.com/classware/quizdesk/internal/api/http"
	"github.com/classware/quizdesk/internal/audit"
	"github.com/classware/quizdesk/internal/auth"
	"github.com/classware/quizdesk/internal/config"
	"github.com/classware/quizdesk/internal/db"
	"github.com/classware/quizdesk/internal/quiz"
	"github.com/classware/quizdesk/internal/rbac"
	"github.com/classware/quizdesk/internal/storage"
)

func main() {
	_ = godotenv.Load() // optional .env for classroom installs
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	store := quiz.NewSQLStore(dbh, cfg.DBDriver)
	sessions := quiz.NewSessionStore()
	svc := quiz.NewService(store, sessions)
	svc.SetGrace(time.Duration(cfg.GraceSec) * time.Second)

	authSvc := auth.NewAuthService(cfg.AuthSecret, dbh)
	stats := analytics.NewService(dbh)
	events := audit.NewEventRepo(dbh, cfg.SiteID)

	media, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if err := dbh.PingContext(req.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Public
	r.Post("/auth/login", api.LoginHandler(authSvc))
	r.Post("/auth/register", api.RegisterHandler(authSvc))

	// Protected (JWT → student + role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware(authSvc))

		pr.Post("/auth/logout", api.LogoutHandler(authSvc, svc))
		pr.Get("/home", api.HomeHandler(svc, stats))
		pr.Get("/leaderboard", api.LeaderboardHandler(stats))
		pr.Put("/me/preferences", api.PreferencesHandler(dbh))
		pr.Get("/media/*", api.ServeMediaHandler(media))

		// Student flow
		pr.With(rbac.Require("quiz:take")).
			Post("/quiz/start", api.StartQuizHandler(svc))
		pr.With(rbac.Require("quiz:take")).
			Get("/quiz/ready/{qid}", api.ReadyHandler(svc))
		pr.With(rbac.Require("quiz:take")).
			Post("/quiz/timer/{qid}", api.StartTimerHandler(svc))
		pr.With(rbac.Require("quiz:take")).
			Get("/quiz/question/{qid}", api.ViewQuestionHandler(svc))
		pr.With(rbac.Require("quiz:take")).
			Post("/quiz/question/{qid}", api.SubmitAnswerHandler(svc))
		pr.With(rbac.Require("quiz:score")).
			Get("/quiz/score", api.ScoreHandler(svc, stats, events))
		pr.With(rbac.Require("quiz:beacon")).
			Post("/quiz/disqualify", api.DisqualifyHandler(svc, events))
		pr.With(rbac.Require("quiz:beacon")).
			Post("/quiz/abandon", api.AbandonHandler(svc, events))

		// Admin: questions
		pr.With(rbac.Require("questions:manage")).
			Get("/admin/questions", api.ListQuestionsHandler(dbh))
		pr.With(rbac.Require("questions:manage")).
			Post("/admin/questions", api.CreateQuestionHandler(dbh))
		pr.With(rbac.Require("questions:manage")).
			Put("/admin/questions/{qid}", api.UpdateQuestionHandler(dbh))
		pr.With(rbac.Require("questions:manage")).
			Delete("/admin/questions/{qid}", api.DeleteQuestionHandler(dbh))
		pr.With(rbac.Require("questions:manage")).
			Delete("/admin/questions", api.DeleteAllQuestionsHandler(dbh))
		pr.With(rbac.Require("questions:manage")).
			Post("/admin/questions/bulk", api.BulkUploadQuestionsHandler(dbh))
		pr.With(rbac.Require("questions:manage")).
			Get("/admin/questions/export", api.ExportQuestionsHandler(dbh))
		pr.With(rbac.Require("questions:manage")).
			Post("/admin/media", api.UploadMediaHandler(media))

		// Admin: question sets
		pr.With(rbac.Require("sets:manage")).
			Get("/admin/sets", api.ListQuestionSetsHandler(dbh))
		pr.With(rbac.Require("sets:manage")).
			Post("/admin/sets", api.CreateQuestionSetHandler(dbh))
		pr.With(rbac.Require("sets:manage")).
			Post("/admin/sets/{setID}/activate", api.ActivateQuestionSetHandler(store, events))
		pr.With(rbac.Require("sets:manage")).
			Post("/admin/sets/{setID}/deactivate", api.DeactivateQuestionSetHandler(store))
		pr.With(rbac.Require("sets:manage")).
			Delete("/admin/sets/{setID}", api.DeleteQuestionSetHandler(dbh))
		pr.With(rbac.Require("sets:manage")).
			Get("/admin/sets/{setID}/stats", api.QuestionStatsHandler(stats))

		// Admin: sections
		pr.With(rbac.Require("sections:manage")).
			Get("/admin/sections", api.ListSectionsHandler(dbh))
		pr.With(rbac.Require("sections:manage")).
			Post("/admin/sections", api.CreateSectionHandler(dbh))
		pr.With(rbac.Require("sections:manage")).
			Delete("/admin/sections/{sectionID}", api.DeleteSectionHandler(dbh))
		pr.With(rbac.Require("sections:manage")).
			Put("/admin/students/{userID}/section", api.AssignSectionHandler(dbh))

		// Admin: students and scores
		pr.With(rbac.Require("students:manage")).
			Get("/admin/students", api.ListStudentsHandler(dbh))
		pr.With(rbac.Require("students:manage")).
			Post("/admin/students", api.AddStudentHandler(dbh))
		pr.With(rbac.Require("students:manage")).
			Delete("/admin/students/{userID}", api.DeleteStudentHandler(dbh))
		pr.With(rbac.Require("students:manage")).
			Post("/admin/students/{userID}/reset", api.ResetStudentHandler(dbh))
		pr.With(rbac.Require("students:manage")).
			Post("/admin/students/reset", api.ResetAllStudentsHandler(dbh))
		pr.With(rbac.Require("students:manage")).
			Post("/admin/students/bulk", api.BulkImportStudentsHandler(dbh))
		pr.With(rbac.Require("students:manage")).
			Get("/admin/scores/export", api.ExportScoresHandler(dbh))
	})

	log.Printf("quizdesk listening on %s (mode=%s driver=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatalf("server: %v", err)
	}
}
