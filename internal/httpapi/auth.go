package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"tokobill/backend/internal/domain"
	"tokobill/backend/internal/service"
)

const sessionCookieName = "tokobill_session"

// SessionManager wraps the server-side session id in a signed cookie. The
// cookie proves nothing by itself; the session row in the database stays
// authoritative and is loaded on every request.
type SessionManager struct {
	svc          *service.Service
	secret       []byte
	secureCookie bool
}

func NewSessionManager(svc *service.Service, secret string, secureCookie bool) *SessionManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	return &SessionManager{
		svc:          svc,
		secret:       []byte(secret),
		secureCookie: secureCookie,
	}
}

func (m *SessionManager) sign(session domain.Session) (string, error) {
	claims := jwtlib.RegisteredClaims{
		ID:        session.ID,
		IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
		ExpiresAt: jwtlib.NewNumericDate(session.ExpiresAt),
		Issuer:    "tokobill",
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *SessionManager) parse(tokenStr string) (string, error) {
	claims := &jwtlib.RegisteredClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", errors.New("invalid or expired session token")
	}
	if strings.TrimSpace(claims.ID) == "" {
		return "", errors.New("session token missing id")
	}
	return claims.ID, nil
}

// IssueCookie signs the session id and sets the auth cookie.
func (m *SessionManager) IssueCookie(w http.ResponseWriter, session domain.Session) error {
	token, err := m.sign(session)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionIDFromRequest extracts and verifies the session id from the cookie
// without touching the database.
func (m *SessionManager) SessionIDFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", errors.New("missing session cookie")
	}
	return m.parse(cookie.Value)
}

// ActorFromRequest resolves the cookie to the acting user, re-attaching user
// and store from the database.
func (m *SessionManager) ActorFromRequest(r *http.Request) (domain.Actor, error) {
	sessionID, err := m.SessionIDFromRequest(r)
	if err != nil {
		return domain.Actor{}, err
	}
	actor, err := m.svc.ResolveSession(r.Context(), sessionID)
	if err != nil {
		return domain.Actor{}, errors.New("invalid or expired session")
	}
	return actor, nil
}
