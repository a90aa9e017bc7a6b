package utils

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	CookieNameMemberID = "member_id"
	HeaderMemberID     = "X-Member-Id"

	memberIDLifetime = 30 * 24 * time.Hour
)

// EnsureMemberID returns the caller's anonymous session id, minting one and
// setting the cookie when the request carries none.
func EnsureMemberID(w http.ResponseWriter, r *http.Request, secure bool) string {
	if id := GetMemberIDFromRequest(r); id != "" {
		return id
	}
	newID := uuid.New().String()
	SetPersistentMemberIDCookie(newID, secure, w)
	return newID
}

func GetMemberIDFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(CookieNameMemberID)
	if err != nil {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(cookie.Value)
	if err != nil {
		return ""
	}
	return string(decoded)
}

func SetPersistentMemberIDCookie(memberID string, secure bool, w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieNameMemberID,
		Value:    base64.StdEncoding.EncodeToString([]byte(memberID)),
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Now().Add(memberIDLifetime),
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}

// GetMemberIDFromRequest prefers the header used by API clients and falls
// back to the cookie.
func GetMemberIDFromRequest(r *http.Request) string {
	if id := r.Header.Get(HeaderMemberID); id != "" {
		return id
	}
	return GetMemberIDFromCookie(r)
}
