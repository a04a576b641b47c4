package http

import (
	"net/http"

	"github.com/aussiebroadwan/sessiond/internal/session/service"
	"github.com/aussiebroadwan/sessiond/internal/session/token"
	"github.com/aussiebroadwan/sessiond/pkg/authsdk"
	"github.com/aussiebroadwan/sessiond/pkg/httpx"
	"github.com/aussiebroadwan/sessiond/pkg/slogx"
)

type AuthHandler struct {
	Auth    *service.AuthService
	Tokens  *token.Service
	Cookies httpx.CookieConfig
}

// HandleRegister creates an account.
//
//	@Summary		Register
//	@Description	Creates an account. The email is stored lower-cased and must be unique.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"email, name, password"
//	@Success		201		{object}	authsdk.StatusResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid request body or field"
//	@Failure		409		{object}	authsdk.ErrorResponse	"Email already registered"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Router			/v1/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.Auth.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	}); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.StatusResponse{Status: "ok"})
}

// HandleLogin exchanges credentials for a token bundle.
//
//	@Summary		Login
//	@Description	Issues an access token (X-New-Access-Token header), a refresh token (HttpOnly cookie)
//	@Description	and a session token (script readable cookie). Unknown email and wrong password answer the same.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"email, password"
//	@Success		200		{object}	authsdk.StatusResponse
//	@Header			200		{string}	X-New-Access-Token	"Access token"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid request body"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid credentials"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	_, issued, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set(authsdk.HeaderNewAccessToken, issued.AccessToken)
	h.Cookies.Set(w, authsdk.CookieRefreshToken, issued.RefreshToken, h.Tokens.TTL(token.KindRefresh), true)
	h.Cookies.Set(w, authsdk.CookieSessionToken, issued.SessionToken, h.Tokens.TTL(token.KindSession), false)

	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Status: "ok"})
}

// HandleRefresh rotates the access token of the refresh cookie's family.
//
//	@Summary		Refresh access token
//	@Description	Verifies the refresh cookie and mints a new access token bound to the same family.
//	@Description	The previous access token stops working immediately.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.RefreshResponse
//	@Header			200	{string}	X-New-Access-Token	"Access token"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Missing, invalid or revoked refresh token"
//	@Router			/v1/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	raw, ok := httpx.ReadCookie(r, authsdk.CookieRefreshToken)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	res, err := h.Auth.Refresh(r.Context(), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set(authsdk.HeaderNewAccessToken, res.Token)
	httpx.WriteJSON(w, http.StatusOK, authsdk.RefreshResponse{AccessToken: res.Token})
}

// HandleLogout revokes the refresh cookie's family and expires both cookies.
//
//	@Summary		Logout
//	@Description	Revokes the refresh token and its bound access token. A second logout answers 401.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.StatusResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"Missing, invalid or revoked refresh token"
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	raw, ok := httpx.ReadCookie(r, authsdk.CookieRefreshToken)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	if err := h.Auth.Logout(r.Context(), raw); err != nil {
		writeError(w, r, err)
		return
	}

	clearCookies(w, h.Cookies)
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Status: "ok"})
}

// HandleReauth re-checks the password of the authenticated user.
//
//	@Summary		Step-up authentication
//	@Description	Returns a short-lived reauth token for the X-Reauth-Token header of sensitive requests.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ReauthRequest	true	"password"
//	@Success		200		{object}	authsdk.ReauthResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid request body"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid access token or password"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Router			/v1/auth/reauth [post].
func (h *AuthHandler) HandleReauth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := httpx.ClaimsFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.ReauthRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.Auth.Reauth(ctx, claims.Subject, claims.RJTI, req.Password)
	if err != nil {
		slogx.FromContext(ctx).Info("reauth rejected", "err", err)
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.ReauthResponse{ReauthToken: res.Token})
}

func clearCookies(w http.ResponseWriter, c httpx.CookieConfig) {
	c.Clear(w, authsdk.CookieRefreshToken, true)
	c.Clear(w, authsdk.CookieSessionToken, false)
}
