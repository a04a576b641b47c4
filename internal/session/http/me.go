package http

import (
	"net/http"

	"github.com/aussiebroadwan/sessiond/internal/session/domain"
	"github.com/aussiebroadwan/sessiond/internal/session/service"
	"github.com/aussiebroadwan/sessiond/pkg/authsdk"
	"github.com/aussiebroadwan/sessiond/pkg/httpx"
)

type MeHandler struct {
	Auth    *service.AuthService
	Cookies httpx.CookieConfig
}

// HandleGet returns the profile of the authenticated user.
//
//	@Summary		Get profile
//	@Tags			User
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.ProfileResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		404	{object}	authsdk.ErrorResponse	"Account no longer exists"
//	@Router			/v1/me [get].
func (h *MeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	p, err := h.Auth.Profile(ctx, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.ProfileResponse{User: profileView(p)})
}

// HandleUpdate changes the name and/or email of the authenticated user.
//
//	@Summary		Update profile
//	@Tags			User
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.UpdateProfileRequest	true	"name, email (both optional)"
//	@Success		200		{object}	authsdk.ProfileResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid request body or field"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		409		{object}	authsdk.ErrorResponse	"Email already registered"
//	@Router			/v1/me [patch].
func (h *MeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.UpdateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.Auth.UpdateProfile(ctx, userID, service.UpdateProfileInput{Name: req.Name, Email: req.Email})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.ProfileResponse{User: profileView(p)})
}

// HandleDelete removes the account and every login of the user.
//
//	@Summary		Delete account
//	@Description	Requires the access token, a reauth token of the same user and the refresh cookie of that user.
//	@Tags			User
//	@Security		BearerAuth
//	@Security		ReauthToken
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid access, reauth or refresh token"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Refresh cookie belongs to another user"
//	@Router			/v1/me [delete].
func (h *MeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}
	raw, ok := httpx.ReadCookie(r, authsdk.CookieRefreshToken)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	if err := h.Auth.DeleteAccount(ctx, userID, raw); err != nil {
		writeError(w, r, err)
		return
	}

	clearCookies(w, h.Cookies)
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleSessions lists the active logins of the authenticated user.
//
//	@Summary		List logins
//	@Description	Active refresh token families of the user. "current" marks the one the access token belongs to.
//	@Tags			User
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.SessionsResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/v1/me/sessions [get].
func (h *MeHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := httpx.ClaimsFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	views, err := h.Auth.Sessions(ctx, claims.Subject, claims.RJTI)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := authsdk.SessionsResponse{Sessions: make([]authsdk.SessionInfo, 0, len(views))}
	for _, v := range views {
		out.Sessions = append(out.Sessions, authsdk.SessionInfo{
			ID:        v.ID,
			CreatedAt: v.CreatedAt,
			ExpiresAt: v.ExpiresAt,
			Current:   v.Current,
		})
	}

	httpx.WriteJSON(w, http.StatusOK, out)
}

func profileView(p domain.Profile) authsdk.UserProfile {
	return authsdk.UserProfile{
		ID:       p.ID,
		Email:    p.Email,
		Name:     p.Name,
		PhotoURL: p.PhotoURL,
	}
}
