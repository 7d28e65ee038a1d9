// Package quickbase uploads pages to a Quick Base application through the
// XML API_AddReplaceDBPage call.
package quickbase

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"git.home.luguber.info/inful/qbdeploy/internal/config"
	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/qbdeploy/internal/logfields"
)

const (
	// ActionAddReplaceDBPage creates or overwrites a code page.
	ActionAddReplaceDBPage = "API_AddReplaceDBPage"

	// PageTypeXSL is the page type for XSL/HTML/script pages.
	PageTypeXSL = 1

	// DefaultDomain is the hostname suffix appended to the realm.
	DefaultDomain = "quickbase.com"
)

// Page is one upload. Body must already be CDATA-escaped.
type Page struct {
	Name string
	Body string
}

// Response is the parsed qdbapi reply. ErrCode 0 means success.
type Response struct {
	XMLName   xml.Name `xml:"qdbapi"`
	Action    string   `xml:"action"`
	ErrCode   int      `xml:"errcode"`
	ErrText   string   `xml:"errtext"`
	ErrDetail string   `xml:"errdetail"`
	PageID    string   `xml:"pageID"`
	PageName  string   `xml:"pagename"`
}

// Rejected reports whether the platform refused the page.
func (r *Response) Rejected() bool {
	return r.ErrCode != 0
}

// Client posts pages to the realm host of a DeployConfig.
type Client struct {
	httpClient *http.Client
	domain     string
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithDomain sets the hostname suffix placed after the realm.
func WithDomain(domain string) Option {
	return func(c *Client) {
		if domain != "" {
			c.domain = domain
		}
	}
}

// WithBaseURL sends every request to baseURL instead of the realm host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates a Client. A nil httpClient uses a fresh client.
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	c := &Client{httpClient: httpClient, domain: DefaultDomain}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RealmURL returns the application base URL for cfg.
func (c *Client) RealmURL(cfg config.DeployConfig) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return fmt.Sprintf("https://%s.%s", cfg.Realm, c.domain)
}

// DBURL returns the endpoint that receives XML API calls for cfg.DBID.
func (c *Client) DBURL(cfg config.DeployConfig) string {
	return c.RealmURL(cfg) + "/db/" + url.PathEscape(cfg.DBID)
}

// PageURL returns the browser URL of a deployed page.
func (c *Client) PageURL(cfg config.DeployConfig, pageName string) string {
	return c.DBURL(cfg) + "?a=dbpage&pagename=" + url.QueryEscape(pageName)
}

// cdata is written verbatim inside a CDATA section.
type cdata struct {
	Text string `xml:",innerxml"`
}

type addReplaceRequest struct {
	XMLName   xml.Name `xml:"qdbapi"`
	PageName  string   `xml:"pagename"`
	PageType  int      `xml:"pagetype"`
	PageBody  cdata    `xml:"pagebody"`
	UserToken string   `xml:"usertoken"`
	AppToken  string   `xml:"apptoken,omitempty"`
}

// EncodeAddReplaceDBPage renders the request body for page.
func EncodeAddReplaceDBPage(cfg config.DeployConfig, page Page) ([]byte, error) {
	req := addReplaceRequest{
		PageName:  page.Name,
		PageType:  PageTypeXSL,
		PageBody:  cdata{Text: "<![CDATA[" + page.Body + "]]>"},
		UserToken: cfg.UserToken,
		AppToken:  cfg.AppToken,
	}
	return xml.Marshal(req)
}

// AddReplaceDBPage uploads page. Transport failures and HTTP errors return
// an upload error; a platform-level rejection is returned in the Response
// with a nil error.
func (c *Client) AddReplaceDBPage(ctx context.Context, cfg config.DeployConfig, page Page) (*Response, error) {
	body, err := EncodeAddReplaceDBPage(cfg, page)
	if err != nil {
		return nil, errors.UploadFailed(page.Name, err)
	}

	endpoint := c.DBURL(cfg)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.UploadFailed(page.Name, err)
	}
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("QUICKBASE-ACTION", ActionAddReplaceDBPage)
	req.Header.Set("X_QUICKBASE_RETURN_HTTP_ERROR", "true")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.UploadFailed(page.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.UploadFailed(page.Name, err)
	}

	parsed, parseErr := decodeResponse(data)
	if resp.StatusCode >= 400 {
		name := page.Name
		if parseErr == nil && parsed.PageName != "" {
			name = parsed.PageName
		}
		return nil, httpError(name, resp, parsed, data)
	}
	if parseErr != nil {
		return nil, errors.UploadFailed(page.Name, fmt.Errorf("unreadable API response %q: %w", snippet(data), parseErr))
	}
	if parsed.PageName == "" {
		parsed.PageName = page.Name
	}

	slog.Debug("Uploaded page",
		logfields.Page(page.Name),
		logfields.ErrCode(parsed.ErrCode),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return parsed, nil
}

func decodeResponse(data []byte) (*Response, error) {
	var r Response
	if err := xml.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func httpError(page string, resp *http.Response, parsed *Response, data []byte) error {
	cause := errors.PlatformError(fmt.Sprintf("platform API error: %s", resp.Status)).
		WithContext("code", resp.StatusCode).
		WithContext("response", snippet(data))
	if parsed != nil && parsed.ErrCode != 0 {
		cause = cause.WithContext("errcode", parsed.ErrCode).WithContext("errtext", parsed.ErrText)
	}
	b := errors.NetworkError(errors.ErrUpload.Message()).
		WithCause(cause.Build()).
		WithContext("page", page)
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
		b = b.WithRetry(errors.RetryNever)
	}
	return b.Build()
}

func snippet(data []byte) string {
	const limit = 512
	s := strings.ReplaceAll(string(data), "\n", " ")
	if len(s) > limit {
		s = s[:limit]
	}
	return s
}
