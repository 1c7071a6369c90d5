package auth

import (
	"net/http"

	"github.com/KAsare1/pesb-server/cmd/utils"
)

type Middleware struct {
	issuer     *Issuer
	cookieName string
}

func NewMiddleware(issuer *Issuer, cookieName string) *Middleware {
	return &Middleware{issuer: issuer, cookieName: cookieName}
}

// Authenticate extracts and verifies the request's token.
func (m *Middleware) Authenticate(r *http.Request) (utils.Identity, error) {
	token, err := ExtractToken(r, m.cookieName)
	if err != nil {
		return utils.Identity{}, err
	}
	return m.issuer.Verify(token)
}

// RequireAuth rejects requests without a valid token and stores the
// caller's identity in the request context for next.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := m.Authenticate(r)
		if err != nil {
			utils.WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(utils.WithIdentity(r.Context(), id)))
	}
}
