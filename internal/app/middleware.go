package app

import (
	"errors"
	"net/http"

	"github.com/agendazk/agendazk/internal/rest"
	"github.com/agendazk/agendazk/pkg/user"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const userIdHeader = "X-User-Id"

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies) {
	r.Use(userMiddleware(deps.UserService))
}

// userMiddleware resolves the X-User-Id header into the request context. Requests without
// the header pass through and are rejected by handlers that need a user. An unknown device
// may only register itself.
func userMiddleware(users user.Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			uid := req.Header.Get(userIdHeader)
			ctx := req.Context()

			if uid != "" {
				u, err := users.GetUserByUid(ctx, uid)
				switch {
				case errors.Is(err, user.ErrUserNotFound):
					if !isRegistration(req) {
						log.Debugf("user not found: %s", uid)
						rest.WriteError(w, http.StatusForbidden, "user not found", "")
						return
					}
				case err != nil:
					log.Errorf("failed to get user: %v", err)
					rest.WriteError(w, http.StatusInternalServerError, "internal server error", "")
					return
				default:
					log.Tracef("user found: %s", u.Uid)
					ctx = user.WithUser(ctx, u)
				}
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

func isRegistration(req *http.Request) bool {
	return req.Method == http.MethodPost && req.URL.Path == "/api/user"
}
