package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
}

type AuthHandler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	RevokeToken(w http.ResponseWriter, r *http.Request)
	Me(w http.ResponseWriter, r *http.Request)
	UpdateProfile(w http.ResponseWriter, r *http.Request)
	ChangePassword(w http.ResponseWriter, r *http.Request)
}

type AdminHandler interface {
	ListUsers(w http.ResponseWriter, r *http.Request)
	CreateUser(w http.ResponseWriter, r *http.Request)
	GetUser(w http.ResponseWriter, r *http.Request)
	SetRole(w http.ResponseWriter, r *http.Request)
	SetStatus(w http.ResponseWriter, r *http.Request)
	DeleteUser(w http.ResponseWriter, r *http.Request)
	ResetPassword(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Health HealthHandler
	Auth   AuthHandler
	Admin  AdminHandler

	RequestIDMW func(http.Handler) http.Handler
	AuthMW      func(http.Handler) http.Handler
	AdminMW     func(http.Handler) http.Handler

	// Optional per-route limiters; nil means unlimited.
	LoginRL    func(http.Handler) http.Handler
	RegisterRL func(http.Handler) http.Handler
}

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("nil Auth handler")
	}
	if deps.Admin == nil {
		return nil, fmt.Errorf("nil Admin handler")
	}
	if deps.AuthMW == nil {
		return nil, fmt.Errorf("nil Auth middleware")
	}
	if deps.AdminMW == nil {
		return nil, fmt.Errorf("nil Admin middleware")
	}

	passthrough := func(next http.Handler) http.Handler { return next }
	if deps.LoginRL == nil {
		deps.LoginRL = passthrough
	}
	if deps.RegisterRL == nil {
		deps.RegisterRL = passthrough
	}

	r := chi.NewRouter()
	if deps.RequestIDMW != nil {
		r.Use(deps.RequestIDMW)
	}

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)

	r.Route("/api/auth", func(r chi.Router) {
		r.With(deps.RegisterRL).Post("/register", deps.Auth.Register)
		r.With(deps.LoginRL).Post("/login", deps.Auth.Login)
		r.Post("/token/revoke", deps.Auth.RevokeToken)

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMW)
			r.Post("/logout", deps.Auth.Logout)
			r.Get("/me", deps.Auth.Me)
			r.Put("/profile", deps.Auth.UpdateProfile)
			r.Post("/password", deps.Auth.ChangePassword)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(deps.AuthMW)
		r.Use(deps.AdminMW)

		r.Get("/users", deps.Admin.ListUsers)
		r.Post("/users", deps.Admin.CreateUser)
		r.Get("/users/{id}", deps.Admin.GetUser)
		r.Post("/users/{id}/role", deps.Admin.SetRole)
		r.Post("/users/{id}/status", deps.Admin.SetStatus)
		r.Delete("/users/{id}", deps.Admin.DeleteUser)
		r.Post("/users/{id}/reset-password", deps.Admin.ResetPassword)
	})

	return r, nil
}
