package handlers

import (
	"net/http"
	"strings"

	"github.com/slotline/slotline/libs/auth"
)

// Verifier checks bearer tokens minted by the identity collaborator. RS256
// via JWKS when configured, HS256 shared secret otherwise. The booking engine
// only ever reads the subject id and role out of a verified token.
type Verifier struct {
	secret string
	jwks   *auth.JWKSClient
}

func NewVerifier(secret string, jwks *auth.JWKSClient) *Verifier {
	return &Verifier{secret: secret, jwks: jwks}
}

func (v *Verifier) Claims(r *http.Request) (*auth.Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
		return nil, auth.ErrInvalidToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

	if v.jwks != nil {
		header, err := auth.ParseHeader(token)
		if err != nil {
			return nil, err
		}
		if header.Alg == "RS256" && header.Kid != "" {
			pub, err := v.jwks.Get(header.Kid)
			if err != nil {
				return nil, auth.ErrInvalidToken
			}
			return auth.VerifyRS256(token, pub)
		}
	}
	return auth.ParseAndVerifyHS256(token, v.secret)
}

// RequireRole gates a management endpoint on a verified token carrying one of
// the given roles. The subject id replaces any caller-supplied identity
// header of the same name.
func (v *Verifier) RequireRole(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := v.Claims(r)
		if err != nil {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		r.Header.Del("X-Provider-Id")
		r.Header.Del("X-Client-Id")
		switch claims.Role {
		case "provider":
			r.Header.Set("X-Provider-Id", claims.Sub)
		case "client":
			r.Header.Set("X-Client-Id", claims.Sub)
		}
		next(w, r)
	}
}
