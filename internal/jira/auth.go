package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nhuanvd/rag-demo/internal/log"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Cookie names a browser session provides for instances that put a
// CAPTCHA in front of form login.
var SessionCookieNames = []string{
	"JSESSIONID",
	"atlassian.xsrf.token",
	"seraph.rememberme.cookie",
}

// ErrNotAuthenticated indicates the session is missing or expired.
var ErrNotAuthenticated = errors.New("jira session not authenticated")

// storedCookie is the on-disk representation of a session cookie.
type storedCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Authenticator manages a JIRA HTTP session: form login, browser
// cookie import and cookie persistence across runs.
type Authenticator struct {
	serverURL  string
	userAgent  string
	cookieFile string
	client     *http.Client
	logger     log.Logger
}

// NewAuthenticator creates an Authenticator for the given server.
// cookieFile is where session cookies persist between runs.
func NewAuthenticator(serverURL, cookieFile string, logger log.Logger) (*Authenticator, error) {
	serverURL = strings.TrimRight(serverURL, "/")
	if serverURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if _, err := url.Parse(serverURL); err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	return &Authenticator{
		serverURL:  serverURL,
		userAgent:  defaultUserAgent,
		cookieFile: cookieFile,
		client: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

// ServerURL returns the normalized server base URL.
func (a *Authenticator) ServerURL() string { return a.serverURL }

// Client returns the session-carrying HTTP client.
func (a *Authenticator) Client() *http.Client { return a.client }

// SetUserAgent overrides the User-Agent sent on every request.
func (a *Authenticator) SetUserAgent(ua string) {
	if ua != "" {
		a.userAgent = ua
	}
}

func (a *Authenticator) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.userAgent)
	return req, nil
}

// TestAuthentication checks whether the current session can reach the
// dashboard without being bounced to the login page.
func (a *Authenticator) TestAuthentication(ctx context.Context) bool {
	req, err := a.newRequest(ctx, http.MethodGet, a.serverURL+"/secure/Dashboard.jspa", nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Debug("authentication test failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return false
	}
	finalURL := strings.ToLower(resp.Request.URL.String())
	if strings.Contains(finalURL, "login") {
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false
	}
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "jira") || strings.Contains(lower, "dashboard")
}

// loginForm is the parsed login page: where to post and which hidden
// fields to echo back.
type loginForm struct {
	action string
	hidden url.Values
}

func (a *Authenticator) fetchLoginForm(ctx context.Context) (*loginForm, error) {
	req, err := a.newRequest(ctx, http.MethodGet, a.serverURL+"/login.jsp", nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching login page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing login page: %w", err)
	}

	form := doc.Find("form#login-form").First()
	if form.Length() == 0 {
		form = doc.Find("form.login-form").First()
	}
	if form.Length() == 0 {
		// Any form carrying a username field will do.
		doc.Find("form").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if s.Find(`input[name="os_username"], input[name="username"]`).Length() > 0 {
				form = s
				return false
			}
			return true
		})
	}
	if form.Length() == 0 {
		return nil, fmt.Errorf("no login form found on login page")
	}

	action := form.AttrOr("action", "")
	switch {
	case strings.HasPrefix(action, "http"):
	case strings.HasPrefix(action, "/"):
		action = a.serverURL + action
	default:
		action = a.serverURL + "/" + action
	}

	hidden := url.Values{}
	form.Find(`input[type="hidden"]`).Each(func(_ int, s *goquery.Selection) {
		if name := s.AttrOr("name", ""); name != "" {
			hidden.Set(name, s.AttrOr("value", ""))
		}
	})

	return &loginForm{action: action, hidden: hidden}, nil
}

// LoginWithCredentials performs a form login and persists the session
// cookies on success.
func (a *Authenticator) LoginWithCredentials(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}

	form, err := a.fetchLoginForm(ctx)
	if err != nil {
		return err
	}

	data := url.Values{}
	for key, vals := range form.hidden {
		for _, v := range vals {
			data.Set(key, v)
		}
	}
	data.Set("os_username", username)
	data.Set("os_password", password)
	data.Set("os_destination", "")
	data.Set("os_cookie", "true")
	data.Set("login", "Log In")

	req, err := a.newRequest(ctx, http.MethodPost, form.action, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("submitting login form: %w", err)
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()

	if !a.TestAuthentication(ctx) {
		return fmt.Errorf("login rejected, check credentials or CAPTCHA requirement: %w", ErrNotAuthenticated)
	}

	if err := a.SaveCookies(); err != nil {
		a.logger.Warn("failed to persist session cookies", "error", err)
	}
	a.logger.Info("jira login successful", "user", username)
	return nil
}

// LoginWithCookies installs browser-provided cookies and verifies the
// resulting session. Used when form login is blocked by a CAPTCHA.
func (a *Authenticator) LoginWithCookies(ctx context.Context, cookies map[string]string) error {
	if len(cookies) == 0 {
		return fmt.Errorf("no cookies provided")
	}

	base, err := url.Parse(a.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for name, value := range cookies {
		httpCookies = append(httpCookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	a.client.Jar.SetCookies(base, httpCookies)

	if !a.TestAuthentication(ctx) {
		return fmt.Errorf("cookie authentication failed: %w", ErrNotAuthenticated)
	}

	if err := a.SaveCookies(); err != nil {
		a.logger.Warn("failed to persist session cookies", "error", err)
	}
	a.logger.Info("jira cookie authentication successful")
	return nil
}

// SaveCookies writes the current session cookies to the cookie file.
func (a *Authenticator) SaveCookies() error {
	if a.cookieFile == "" {
		return nil
	}
	base, err := url.Parse(a.serverURL)
	if err != nil {
		return err
	}

	var stored []storedCookie
	for _, c := range a.client.Jar.Cookies(base) {
		stored = append(stored, storedCookie{
			Name:  c.Name,
			Value: c.Value,
			Path:  c.Path,
		})
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cookies: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(a.cookieFile), 0o755); err != nil {
		return fmt.Errorf("creating cookie directory: %w", err)
	}
	// Session cookies grant account access, keep the file private.
	if err := os.WriteFile(a.cookieFile, data, 0o600); err != nil {
		return fmt.Errorf("writing cookie file: %w", err)
	}
	a.logger.Debug("session cookies saved", "file", a.cookieFile)
	return nil
}

// LoadCookies restores session cookies from the cookie file. Returns
// false without error when no file exists.
func (a *Authenticator) LoadCookies() (bool, error) {
	if a.cookieFile == "" {
		return false, nil
	}
	data, err := os.ReadFile(a.cookieFile)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading cookie file: %w", err)
	}

	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return false, fmt.Errorf("parsing cookie file: %w", err)
	}
	if len(stored) == 0 {
		return false, nil
	}

	base, err := url.Parse(a.serverURL)
	if err != nil {
		return false, err
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		path := c.Path
		if path == "" {
			path = "/"
		}
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: path})
	}
	a.client.Jar.SetCookies(base, cookies)

	a.logger.Debug("session cookies loaded", "file", a.cookieFile, "count", len(cookies))
	return true, nil
}

// ClearCookies removes the cookie file and resets the session jar.
func (a *Authenticator) ClearCookies() error {
	if a.cookieFile != "" {
		if err := os.Remove(a.cookieFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing cookie file: %w", err)
		}
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("resetting cookie jar: %w", err)
	}
	a.client.Jar = jar
	return nil
}

// EnsureAuthenticated establishes a working session: saved cookies
// first, then form login with the given credentials.
func (a *Authenticator) EnsureAuthenticated(ctx context.Context, username, password string) error {
	if loaded, err := a.LoadCookies(); err != nil {
		a.logger.Warn("failed to load saved cookies", "error", err)
	} else if loaded && a.TestAuthentication(ctx) {
		a.logger.Info("using saved jira session")
		return nil
	}

	if username == "" || password == "" {
		return fmt.Errorf("no valid session and no credentials configured: %w", ErrNotAuthenticated)
	}
	return a.LoginWithCredentials(ctx, username, password)
}
