package router

import (
	"net/http"
	"strings"

	"github.com/tasklift/backend/internal/auth"
	"github.com/tasklift/backend/internal/handlers"
	"github.com/tasklift/backend/internal/middleware"
)

// Deps bundles the handlers and middleware the router wires together.
type Deps struct {
	Auth        *auth.Handler
	Tasks       *handlers.TaskHandler
	User        *handlers.UserHandler
	Withdrawals *handlers.WithdrawalHandler
	Packages    *handlers.PackageHandler
	AuthMW      func(http.Handler) http.Handler
}

// New returns an http.Handler that serves the API under /api/v1.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	// Public.
	mux.HandleFunc(base+"/auth/signup", methodPOST(d.Auth.Signup))
	mux.HandleFunc(base+"/auth/signin", methodPOST(d.Auth.Signin))
	mux.HandleFunc(base+"/tasks", methodGET(d.Tasks.ListTasks))
	mux.HandleFunc(base+"/packages", methodGET(d.Packages.List))

	// Authenticated.
	authed := http.NewServeMux()
	authed.HandleFunc(base+"/tasks/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/claim") {
			d.Tasks.ClaimTask(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	authed.HandleFunc(base+"/claims", methodGET(d.Tasks.ListClaims))
	authed.HandleFunc(base+"/claims/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/complete") {
			d.Tasks.CompleteClaim(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	authed.HandleFunc(base+"/me", methodGET(d.User.Me))
	authed.HandleFunc(base+"/me/balance", methodGET(d.User.Balance))
	authed.HandleFunc(base+"/me/ledger", methodGET(d.User.Ledger))
	authed.HandleFunc(base+"/me/stats", methodGET(d.User.Stats))
	authed.HandleFunc(base+"/me/referrals", methodGET(d.User.Referrals))
	authed.HandleFunc(base+"/withdrawals", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			d.Withdrawals.Create(w, r)
		case http.MethodGet:
			d.Withdrawals.List(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	authed.HandleFunc(base+"/withdrawals/", methodGET(d.Withdrawals.Get))
	authed.HandleFunc(base+"/admin/tasks", methodPOST(adminOnly(d.Tasks.CreateTask)))

	mux.Handle(base+"/tasks/", d.AuthMW(authed))
	mux.Handle(base+"/claims", d.AuthMW(authed))
	mux.Handle(base+"/claims/", d.AuthMW(authed))
	mux.Handle(base+"/me", d.AuthMW(authed))
	mux.Handle(base+"/me/", d.AuthMW(authed))
	mux.Handle(base+"/withdrawals", d.AuthMW(authed))
	mux.Handle(base+"/withdrawals/", d.AuthMW(authed))
	mux.Handle(base+"/admin/", d.AuthMW(authed))

	return mux
}

func adminOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware.AdminOnly(h).ServeHTTP(w, r)
	}
}

func methodGET(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func methodPOST(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}
