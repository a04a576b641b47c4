package httpx

import (
	"net/http"
	"time"
)

// CookieConfig holds the attributes shared by every token cookie.
type CookieConfig struct {
	Domain   string
	Path     string
	Secure   bool
	SameSite http.SameSite
}

// Cookie builds a cookie carrying value for maxAge. Scripts may read it only
// when httpOnly is false.
func (c CookieConfig) Cookie(name, value string, maxAge time.Duration, httpOnly bool) *http.Cookie {
	path := c.Path
	if path == "" {
		path = "/"
	}
	sameSite := c.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   c.Domain,
		MaxAge:   int(maxAge / time.Second),
		Secure:   c.Secure,
		HttpOnly: httpOnly,
		SameSite: sameSite,
	}
}

// Set writes a token cookie to the response.
func (c CookieConfig) Set(w http.ResponseWriter, name, value string, maxAge time.Duration, httpOnly bool) {
	http.SetCookie(w, c.Cookie(name, value, maxAge, httpOnly))
}

// Clear expires the named cookie on the client.
func (c CookieConfig) Clear(w http.ResponseWriter, name string, httpOnly bool) {
	ck := c.Cookie(name, "", 0, httpOnly)
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0)
	http.SetCookie(w, ck)
}

// ReadCookie returns the value of the named cookie, if present and non-empty.
func ReadCookie(r *http.Request, name string) (string, bool) {
	ck, err := r.Cookie(name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}
