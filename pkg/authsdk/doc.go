/*
Package authsdk provides a client SDK for the sessiond HTTP API, plus the
request, response and error types the server writes.

# SDKClient vs Session

  - SDKClient: unauthenticated operations (register, login, health, JWKS)
  - Session: authenticated operations with automatic access token refresh

The refresh and session tokens travel as cookies. NewSDKClient installs a
cookie jar, so a Session created by Login keeps working for as long as the
refresh token is valid:

	client := authsdk.NewSDKClient("https://sessions.example.com")

	err := client.Register(ctx, authsdk.RegisterRequest{
		Email:    "ada@example.com",
		Name:     "Ada Lovelace",
		Password: "correct horse battery",
	})

	session, err := client.Login(ctx, "ada@example.com", "correct horse battery")
	profile, err := session.GetProfile(ctx)

# Automatic Token Refresh

Before each request the Session checks the expiry of its access token (with
a 30 second buffer) and rotates it through POST /v1/auth/refresh when needed.
A request rejected with invalid_token is retried once after a refresh, which
covers the case of another client rotating the same login.

Rotation invalidates the previous access token immediately. Sharing one
refresh cookie between several Sessions therefore makes them take turns.

# Sensitive Operations

Deleting the account requires a step-up token:

	reauth, err := session.Reauth(ctx, password)
	err = session.DeleteAccount(ctx, reauth)

# Error Handling

Failed requests return *APIError. Compare with the predefined values:

	if errors.Is(err, authsdk.ErrInvalidCredentials) {
		// wrong email or password
	}

# Thread Safety

Sessions are safe for concurrent use.
*/
package authsdk
