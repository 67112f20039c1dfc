package api

import (
	"net/http"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/engine"
	"github.com/erazemk/oprema/internal/model"
)

// Options configures the API router.
type Options struct {
	DB                *db.DB
	Engine            *engine.Engine
	JWTSecret         string
	LowStockThreshold int
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(opts Options) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: opts.DB, JWTSecret: opts.JWTSecret}
	usersHandler := &UsersHandler{DB: opts.DB}
	itemsHandler := &ItemsHandler{DB: opts.DB, Engine: opts.Engine}
	requestsHandler := &RequestsHandler{DB: opts.DB, Engine: opts.Engine}
	assignmentsHandler := &AssignmentsHandler{DB: opts.DB, Engine: opts.Engine}
	feedbackHandler := &FeedbackHandler{DB: opts.DB}
	reportsHandler := &ReportsHandler{DB: opts.DB, LowStockThreshold: opts.LowStockThreshold}

	authMW := AuthMiddleware(opts.JWTSecret, opts.DB)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireStaff := RequireRole(model.RoleStaff)

	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }
	staff := func(h http.HandlerFunc) http.Handler { return authMW(requireStaff(h)) }

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)

	// Any authenticated user.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("GET /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.GetImage)))

	// Staff.
	mux.Handle("GET /api/me/assignments", staff(assignmentsHandler.Mine))
	mux.Handle("POST /api/me/assignments/{id}/return", staff(assignmentsHandler.RequestReturn))
	mux.Handle("GET /api/me/requests", staff(requestsHandler.Mine))
	mux.Handle("POST /api/requests", staff(requestsHandler.Submit))
	mux.Handle("POST /api/feedback", staff(feedbackHandler.Submit))

	// Items (admin).
	mux.Handle("GET /api/items/available", admin(itemsHandler.Available))
	mux.Handle("POST /api/items", admin(itemsHandler.Create))
	mux.Handle("PUT /api/items/{id}", admin(itemsHandler.Update))
	mux.Handle("DELETE /api/items/{id}", admin(itemsHandler.Delete))
	mux.Handle("PUT /api/items/{id}/image", admin(itemsHandler.UploadImage))

	// Requests and assignments (admin).
	mux.Handle("GET /api/requests", admin(requestsHandler.Queue))
	mux.Handle("POST /api/requests/{id}/approve", admin(requestsHandler.Approve))
	mux.Handle("POST /api/requests/{id}/reject", admin(requestsHandler.Reject))
	mux.Handle("POST /api/assignments", admin(assignmentsHandler.Create))
	mux.Handle("GET /api/assignments/returns", admin(assignmentsHandler.PendingReturns))
	mux.Handle("POST /api/assignments/{id}/complete-return", admin(assignmentsHandler.CompleteReturn))

	// Users (admin).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Dashboard and reports (admin).
	mux.Handle("GET /api/dashboard", admin(reportsHandler.Dashboard))
	mux.Handle("GET /api/reports", admin(reportsHandler.Summary))
	mux.Handle("GET /api/reports/inventory.xlsx", admin(reportsHandler.Export))

	return mux
}

// HealthHandler reports whether the database answers.
func HealthHandler(database *db.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := database.PingContext(r.Context()); err != nil {
			storageError(w, r, "reach database", err)
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
