package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/emrgen/impact/internal/auth"
	"github.com/emrgen/impact/internal/service"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/sirupsen/logrus"
)

// access is the authorization policy of a route.
type access int

const (
	// public routes never need a token.
	public access = iota
	// userScoped routes read data that belongs to the caller.
	userScoped
	// mutating routes change stored data.
	mutating
	// listing routes answer with an empty result instead of 401.
	listing
)

// authenticate resolves the caller of r. An empty id with a nil error means
// the caller is unknown and the route accepts that. Listing routes only
// ever see a verified user, so callers without a valid token get an empty
// list whatever auth.required says.
func (a *API) authenticate(r *http.Request, policy access) (string, error) {
	token := auth.BearerToken(r.Header.Get("Authorization"))

	if token != "" && a.verifier != nil {
		userID, err := a.verifier.Verify(r.Context(), token)
		if err == nil {
			return userID, nil
		}
		logrus.Debugf("rejected token on %s: %v", r.URL.Path, err)
		if a.required && policy != public && policy != listing {
			return "", fmt.Errorf("%w: %w", service.ErrUnauthorized, err)
		}
	}

	switch {
	case policy == listing:
		return "", nil
	case policy == public:
		return auth.AnonymousUser, nil
	case a.required:
		return "", fmt.Errorf("%w: %w", service.ErrUnauthorized, auth.ErrMissingToken)
	default:
		return auth.AnonymousUser, nil
	}
}

// route applies policy before h runs. The resolved user id is in the request
// context.
func (a *API) route(policy access, h runtime.HandlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		userID, err := a.authenticate(r, policy)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if userID != "" {
			r = r.WithContext(auth.WithUser(r.Context(), userID))
		}

		h(w, r, params)
	}
}

func userOf(r *http.Request) string {
	userID, _ := auth.UserFromContext(r.Context())
	return userID
}

var errNoVerifier = errors.New("auth.required is set but neither auth.secret nor auth.insecure is configured")
