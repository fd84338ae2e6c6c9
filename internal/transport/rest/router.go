package rest

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/frahmantamala/attendance/internal/attendance"
	"github.com/frahmantamala/attendance/internal/auth"
	"github.com/frahmantamala/attendance/internal/employee"
	"github.com/frahmantamala/attendance/internal/shift"
	"github.com/frahmantamala/attendance/internal/transport/middleware"
	"github.com/frahmantamala/attendance/internal/transport/swagger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

type Handlers struct {
	Auth       *auth.Handler
	Attendance *attendance.Handler
	Employee   *employee.Handler
	Shift      *shift.Handler
}

type RouterOptions struct {
	DB             *sql.DB
	Driver         string
	AllowedOrigins string
	RequestTimeout time.Duration
	OpenAPISpec    []byte
	Logger         *slog.Logger
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts RouterOptions) {
	healthHandler := NewHealthHandler(opts.DB, opts.Driver)

	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(opts.Logger))
	router.Use(middleware.ClientIP)
	router.Use(middleware.LoggingMiddleware(opts.Logger))
	router.Use(chiMiddleware.StripSlashes)
	if opts.RequestTimeout > 0 {
		router.Use(chiMiddleware.Timeout(opts.RequestTimeout))
	}

	router.Get("/openapi.yml", swagger.SpecHandler(opts.OpenAPISpec))
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)
		r.Get("/ping", healthHandler.Ping)

		r.Post("/auth/login", h.Auth.Login)

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Route("/attendance", func(ar chi.Router) {
				ar.Post("/check-in", h.Attendance.CheckIn)
				ar.Post("/check-out", h.Attendance.CheckOut)
				ar.Get("/status", h.Attendance.GetStatus)
			})

			pr.Route("/admin", func(ar chi.Router) {
				ar.Use(h.Auth.RequireAdmin)

				ar.Post("/employees", h.Employee.RegisterEmployee)
				ar.Delete("/employees/{employee_id}", h.Employee.DeleteEmployee)
				ar.Patch("/employees/{employee_id}/status", h.Employee.UpdateStatus)
				ar.Post("/employees/{employee_id}/faces", h.Employee.EnrollFace)
				ar.Post("/employees/{employee_id}/shift", h.Shift.AssignShift)
				ar.Get("/employees/{employee_id}/shift", h.Shift.GetEmployeeShift)
				ar.Post("/faces/recognize", h.Employee.RecognizeFace)
			})
		})
	})
}
