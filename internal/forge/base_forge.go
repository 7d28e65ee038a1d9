package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
)

// userAgent identifies qbdeploy to forge APIs.
const userAgent = "qbdeploy/1.0"

// BaseForge provides common HTTP operations for forge clients.
type BaseForge struct {
	httpClient *http.Client
	apiURL     string
	token      string

	authHeaderPrefix string
	customHeaders    map[string]string
}

// NewBaseForge creates a BaseForge with common forge HTTP client settings.
func NewBaseForge(httpClient *http.Client, apiURL, token string) *BaseForge {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BaseForge{
		httpClient:       httpClient,
		apiURL:           apiURL,
		token:            token,
		authHeaderPrefix: "Bearer ",
		customHeaders:    make(map[string]string),
	}
}

// SetAuthHeaderPrefix customizes the authorization header format.
func (b *BaseForge) SetAuthHeaderPrefix(prefix string) {
	b.authHeaderPrefix = prefix
}

// SetCustomHeader sets a header sent with every request.
func (b *BaseForge) SetCustomHeader(key, value string) {
	b.customHeaders[key] = value
}

// NewRequest creates a request for endpoint, an already escaped path
// relative to the API URL. query may be nil. Without a token no
// Authorization header is sent.
func (b *BaseForge) NewRequest(ctx context.Context, method, endpoint string, query url.Values) (*http.Request, error) {
	u, err := url.Parse(b.apiURL)
	if err != nil {
		return nil, errors.ForgeError("failed to parse API URL").
			WithCause(err).
			WithContext("api_url", b.apiURL).
			Build()
	}

	u = u.JoinPath(strings.TrimPrefix(endpoint, "/"))
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), http.NoBody)
	if err != nil {
		return nil, errors.ForgeError("failed to create request").
			WithCause(err).
			WithContext("method", method).
			WithContext("url", u.String()).
			Build()
	}

	if b.token != "" {
		req.Header.Set("Authorization", b.authHeaderPrefix+b.token)
	}
	req.Header.Set("User-Agent", userAgent)
	for key, value := range b.customHeaders {
		req.Header.Set(key, value)
	}

	return req, nil
}

// DoRequest executes req and JSON-decodes the response into result.
func (b *BaseForge) DoRequest(req *http.Request, result any) error {
	body, err := b.DoRaw(req)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return errors.ForgeError("failed to decode response").
			WithCause(err).
			WithContext("url", req.URL.String()).
			Build()
	}
	return nil
}

// DoRaw executes req and returns the response body. Status codes of 400 and
// above become classified errors: 401/403 auth, 404 not_found, 429 and 5xx
// retryable network errors, anything else forge.
func (b *BaseForge) DoRaw(req *http.Request) ([]byte, error) {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, errors.NetworkError("failed to execute forge request").
			WithCause(err).
			WithContext("method", req.Method).
			WithContext("url", req.URL.String()).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, statusError(req, resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NetworkError("failed to read forge response").
			WithCause(err).
			WithContext("url", req.URL.String()).
			Build()
	}
	return body, nil
}

func statusError(req *http.Request, resp *http.Response) error {
	// Read limited body for diagnostics
	limitedBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	bodyStr := strings.ReplaceAll(string(limitedBody), "\n", " ")

	var b *errors.ErrorBuilder
	switch {
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		b = errors.NetworkError(fmt.Sprintf("forge API rate limited: %s", resp.Status)).RateLimit()
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		b = errors.AuthError(fmt.Sprintf("forge API error: %s", resp.Status))
	case resp.StatusCode == http.StatusNotFound:
		b = errors.NotFoundError(fmt.Sprintf("forge API error: %s", resp.Status))
	case resp.StatusCode == http.StatusTooManyRequests:
		b = errors.NetworkError(fmt.Sprintf("forge API rate limited: %s", resp.Status)).RateLimit()
	case resp.StatusCode >= 500:
		b = errors.NetworkError(fmt.Sprintf("forge API error: %s", resp.Status))
	default:
		b = errors.ForgeError(fmt.Sprintf("forge API error: %s", resp.Status))
	}

	return b.WithContext("status", resp.Status).
		WithContext("code", resp.StatusCode).
		WithContext("url", req.URL.String()).
		WithContext("response", bodyStr).
		Build()
}
