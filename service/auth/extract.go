package auth

import (
	"mime"
	"net/http"
	"strings"

	"github.com/KAsare1/pesb-server/cmd/utils"
)

const (
	AccessTokenHeader = "x-access-token"
	TokenFormField    = "token"
)

// ExtractToken finds the session token on r. Sources are tried in order:
// Authorization bearer, x-access-token header, a "token" form field, then
// the named cookie. The first non-empty one wins.
func ExtractToken(r *http.Request, cookieName string) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token, nil
			}
		}
	}

	if token := strings.TrimSpace(r.Header.Get(AccessTokenHeader)); token != "" {
		return token, nil
	}

	if isForm(r) {
		if token := strings.TrimSpace(r.FormValue(TokenFormField)); token != "" {
			return token, nil
		}
	}

	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value, nil
		}
	}

	return "", utils.Unauthorized("missing token")
}

func isForm(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "multipart/form-data" || mediaType == "application/x-www-form-urlencoded"
}
