package pocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultAuthorizeURL is the page a user visits to approve a request token.
	DefaultAuthorizeURL = "https://getpocket.com/auth/authorize"
	// DefaultRedirectURI is where Pocket sends the user after approval.
	DefaultRedirectURI = "https://getpocket.com"
)

// AuthError is a failed step of the OAuth flow. Err is a *TransportError when
// the exchange itself failed.
type AuthError struct {
	Step string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("pocket auth: %s: %v", e.Step, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Authenticator runs Pocket's OAuth flow for a consumer key: obtain a request
// token, have the user approve it, then trade it for an access token.
type Authenticator struct {
	BaseURL      *url.URL
	AuthorizeURL string
	ConsumerKey  string
	HTTPClient   *http.Client
}

// NewAuthenticator creates an Authenticator against baseURL.
func NewAuthenticator(baseURL, consumerKey string, hc *http.Client) (*Authenticator, error) {
	parsedURL, err := url.ParseRequestURI(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Authenticator{
		BaseURL:      parsedURL,
		AuthorizeURL: DefaultAuthorizeURL,
		ConsumerKey:  consumerKey,
		HTTPClient:   hc,
	}, nil
}

// Authorization is the result of a successful authorize call.
type Authorization struct {
	AccessToken string
	Username    string
}

func (a *Authenticator) postForm(ctx context.Context, op, path string, form url.Values) (url.Values, error) {
	reqURL := a.BaseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			XError:     resp.Header.Get("X-Error"),
			XErrorCode: resp.Header.Get("X-Error-Code"),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("unable to parse response %q: %w", body, err)
	}
	return values, nil
}

// RequestToken obtains a request token for redirectURI.
func (a *Authenticator) RequestToken(ctx context.Context, redirectURI string) (string, error) {
	const step = "request token"

	values, err := a.postForm(ctx, "pocket.oauth_request", "/oauth/request", url.Values{
		"consumer_key": {a.ConsumerKey},
		"redirect_uri": {redirectURI},
	})
	if err != nil {
		return "", &AuthError{Step: step, Err: err}
	}
	code := values.Get("code")
	if code == "" {
		return "", &AuthError{Step: step, Err: errors.New("response has no code")}
	}
	return code, nil
}

// AuthorizationURL is the page the user must visit to approve token.
func (a *Authenticator) AuthorizationURL(token, redirectURI string) string {
	q := url.Values{}
	q.Set("request_token", token)
	q.Set("redirect_uri", redirectURI)
	return a.AuthorizeURL + "?" + q.Encode()
}

// Authorize trades an approved request token for an access token.
func (a *Authenticator) Authorize(ctx context.Context, token string) (Authorization, error) {
	const step = "authorize"

	values, err := a.postForm(ctx, "pocket.oauth_authorize", "/oauth/authorize", url.Values{
		"consumer_key": {a.ConsumerKey},
		"code":         {token},
	})
	if err != nil {
		return Authorization{}, &AuthError{Step: step, Err: err}
	}
	accessToken := values.Get("access_token")
	if accessToken == "" {
		return Authorization{}, &AuthError{Step: step, Err: errors.New("response has no access_token")}
	}
	return Authorization{AccessToken: accessToken, Username: values.Get("username")}, nil
}
