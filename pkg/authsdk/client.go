package authsdk

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// SDKClient is a client for the sessiond HTTP API.
// It provides access to unauthenticated operations and creates authenticated
// Sessions. The refresh and session cookies live in the client's cookie jar,
// so one SDKClient represents one browser-like login context.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new client with an in-memory cookie jar.
func NewSDKClient(baseURL string) *SDKClient {
	jar, _ := cookiejar.New(nil)
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
	}
}

// Register creates an account.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/register", req, nil)
	if err != nil {
		return err
	}

	var status StatusResponse
	return decodeJSON(resp, &status, http.StatusCreated)
}

// Login authenticates with email and password and returns a Session holding
// the access token. The refresh and session cookies are kept in the jar.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*Session, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login", LoginRequest{Email: email, Password: password}, nil)
	if err != nil {
		return nil, err
	}

	accessToken := resp.Header.Get(HeaderNewAccessToken)

	var status StatusResponse
	if err := decodeJSON(resp, &status, http.StatusOK); err != nil {
		return nil, err
	}

	return newSession(c, accessToken), nil
}

// ResumeSession builds a Session from an access token obtained elsewhere. The
// jar must still hold the refresh cookie for automatic refresh to work.
func (c *SDKClient) ResumeSession(accessToken string) *Session {
	return newSession(c, accessToken)
}

// cookie returns the value of the named cookie stored for BaseURL.
func (c *SDKClient) cookie(name string) string {
	if c.HTTPClient.Jar == nil {
		return ""
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	for _, ck := range c.HTTPClient.Jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}
