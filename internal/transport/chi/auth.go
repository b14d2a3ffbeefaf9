package chi

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/stacfed/internal/logger"
)

// publicPaths stay open for probes, scrapers and the API description.
var publicPaths = map[string]struct{}{
	"/api":          {},
	"/_mgmt/health": {},
	"/_mgmt/ping":   {},
	"/metrics":      {},
}

const bearerChallenge = `Bearer realm="stacfed"`

// BearerAuthMiddleware requires "Authorization: Bearer <key>" with one of apiKeys
// on every non-public route. CORS preflights pass so browsers can learn the
// allowed headers. Empty apiKeys disables authentication.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	// Keys are compared as fixed-size digests so timing leaks neither content nor length.
	var digests [][sha256.Size]byte
	for _, k := range apiKeys {
		if k != "" {
			digests = append(digests, sha256.Sum256([]byte(k)))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(digests) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := publicPaths[r.URL.Path]; ok || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, reason := bearerToken(r.Header.Get("Authorization"))
			if reason == "" && !knownKey(digests, token) {
				reason = "invalid api key"
			}
			if reason != "" {
				logpkg.FromContext(r.Context()).Debug("request rejected",
					zap.String("path", r.URL.Path), zap.String("reason", reason))
				w.Header().Set("WWW-Authenticate", bearerChallenge)
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, reason)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the credentials of a Bearer header. The scheme name is
// case-insensitive (RFC 9110). A non-empty reason explains a rejection.
func bearerToken(header string) (token, reason string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "authorization header must use Bearer scheme"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "missing api key"
	}
	return token, ""
}

func knownKey(digests [][sha256.Size]byte, token string) bool {
	sum := sha256.Sum256([]byte(token))
	match := 0
	for i := range digests {
		match |= subtle.ConstantTimeCompare(digests[i][:], sum[:])
	}
	return match == 1
}
