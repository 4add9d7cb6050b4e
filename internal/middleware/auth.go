package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenDisabled = errors.New("edit tokens are disabled")
	ErrTokenSubject  = errors.New("token was issued for another post")
)

// EditTokens issues short-lived HS256 tokens that prove the holder passed the
// password check for one post.
type EditTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewEditTokens(secret string, ttl time.Duration) *EditTokens {
	return &EditTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *EditTokens) Enabled() bool {
	return t != nil && len(t.secret) > 0
}

func (t *EditTokens) Issue(postID int64) (string, error) {
	if !t.Enabled() {
		return "", ErrTokenDisabled
	}
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   strconv.FormatInt(postID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	})
	return token.SignedString(t.secret)
}

func (t *EditTokens) Verify(tokenStr string, postID int64) error {
	if !t.Enabled() {
		return ErrTokenDisabled
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return err
	}
	if claims.Subject != strconv.FormatInt(postID, 10) {
		return ErrTokenSubject
	}
	return nil
}

// Require rejects requests whose bearer token was not issued for the post
// named by the chi URL param.
func (t *EditTokens) Require(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			postID, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
			if err != nil {
				http.Error(w, "invalid id", http.StatusBadRequest)
				return
			}
			if err := t.Verify(bearerToken(r), postID); err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
