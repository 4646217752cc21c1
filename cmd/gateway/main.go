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

	api "github.com/reha-link/rehalink-platform/internal/api/http"
	"github.com/reha-link/rehalink-platform/internal/assignment"
	"github.com/reha-link/rehalink-platform/internal/attempt"
	"github.com/reha-link/rehalink-platform/internal/audit"
	auth "github.com/reha-link/rehalink-platform/internal/auth/middleware"
	"github.com/reha-link/rehalink-platform/internal/config"
	"github.com/reha-link/rehalink-platform/internal/db"
	"github.com/reha-link/rehalink-platform/internal/rbac"
	"github.com/reha-link/rehalink-platform/internal/review"
	"github.com/reha-link/rehalink-platform/internal/storage"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	assignments := assignment.NewSQLStore(dbh)
	records := attempt.NewSQLStore(dbh)
	reviews := review.NewSQLQueue(dbh)
	events := audit.NewEventRepo(dbh, cfg.SiteID)

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

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
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))
	r.Post("/auth/register", api.RegisterHandler(dbh))

	// Protected API (JWT → DB role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, cfg.Mode == config.ModeOffline))

		// Patient flow
		pr.With(rbac.Require("assignment:view-own")).
			Get("/patient/assignments", api.ListAssignedHandler(assignments))
		pr.With(rbac.Require("assignment:view-own")).
			Get("/patient/assignments/v2/{assignmentID}", api.GetAssignedV2Handler(assignments))
		pr.With(rbac.Require("assignment:view-own")).
			Get("/patient/assignments/{assignmentID}", api.GetAssignedLegacyHandler(assignments))

		pr.With(rbac.Require("record:start")).
			Post("/patient/records/{assignmentID}/start", api.StartRecordHandler(records, events))
		pr.With(rbac.Require("record:answer")).
			Post("/patient/records/{assignmentID}/mcq", api.SaveMCQHandler(records))
		pr.With(rbac.Require("record:answer")).
			Post("/patient/records/{assignmentID}/writing", api.SaveWritingHandler(records))
		pr.With(rbac.Require("record:finish")).
			Post("/patient/records/{assignmentID}/finish", api.FinishRecordHandler(records, events))

		pr.With(rbac.Require("record:view-own")).
			Get("/patient/records", api.ListRecordsHandler(records))
		pr.With(rbac.Require("record:view-own")).
			Get("/patient/records/{assignmentID}/history", api.RecordHistoryHandler(records))
		pr.With(rbac.Require("record:view-own")).
			Get("/patient/records/detail/{recordID}", api.RecordDetailHandler(records))
		pr.With(rbac.Require("progress:view-own")).
			Get("/patient/progress", api.PatientProgressHandler(assignments, records))

		// Doctor flow
		pr.With(rbac.Require("patients:list")).
			Get("/doctor/patients", api.BoundPatientsHandler(dbh))
		pr.With(rbac.Require("patients:list")).
			Get("/doctor/patients/available", api.AvailablePatientsHandler(dbh))
		pr.With(rbac.Require("patients:bind")).
			Post("/doctor/patients/{patientID}/bind", api.BindPatientHandler(dbh))
		pr.With(rbac.Require("patients:assign")).
			Post("/doctor/patients/{patientID}/assign/{assignmentID}", api.AssignToPatientHandler(dbh, assignments))
		pr.With(rbac.Require("review:list")).
			Get("/doctor/reviews", api.ListReviewsHandler(reviews))
		pr.With(rbac.Require("review:verdict")).
			Post("/doctor/reviews/{answerID}", api.MarkVerdictHandler(reviews, events))
		pr.With(rbac.Require("record:view-bound")).
			Get("/doctor/patients/{patientID}/records/{assignmentID}", api.BoundHistoryHandler(dbh, records))
		pr.With(rbac.Require("progress:view-bound")).
			Get("/doctor/patients/{patientID}/progress", api.BoundProgressHandler(dbh, assignments, records))

		// Catalog + authoring
		pr.With(rbac.Require("assignment:view")).
			Get("/assignments", api.ListAssignmentsHandler(assignments))
		pr.With(rbac.Require("assignment:view")).
			Get("/assignments/v2/{assignmentID}", api.GetAssignmentV2Handler(assignments))
		pr.With(rbac.Require("assignment:view")).
			Get("/assignments/{assignmentID}", api.GetAssignmentLegacyHandler(assignments))
		pr.With(rbac.Require("assignment:create")).
			Post("/assignments", api.CreateAssignmentHandler(assignments))
		pr.With(rbac.Require("assignment:update")).
			Put("/assignments/{assignmentID}", api.UpdateAssignmentHandler(assignments))
		pr.With(rbac.Require("assignment:delete")).
			Delete("/assignments/{assignmentID}", api.DeleteAssignmentHandler(assignments))
		pr.With(rbac.Require("assignment:create")).
			Post("/assignments/images", api.UploadImageHandler(bs))

		// Item images
		pr.With(rbac.RequireAny("assignment:view-own", "assignment:view")).
			Get("/assets/images/*", api.ServeImageHandler(bs))

		// Users (admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/admin/users", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/admin/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("users:update")).
			Patch("/admin/users/{userID}/role", api.AdminUpdateUserRoleHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/me/password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
