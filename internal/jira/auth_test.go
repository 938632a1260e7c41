package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhuanvd/rag-demo/internal/log"
)

// jiraStub mimics the login flow of a JIRA server: a form on
// /login.jsp, a session cookie on successful POST and a dashboard
// that redirects anonymous users back to login.
type jiraStub struct {
	mux      *http.ServeMux
	server   *httptest.Server
	password string
	logins   int
}

func newJIRAStub(t *testing.T) *jiraStub {
	t.Helper()
	stub := &jiraStub{mux: http.NewServeMux(), password: "s3cret"}

	stub.mux.HandleFunc("GET /login.jsp", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>
<form id="login-form" action="/login.jsp" method="post">
<input type="hidden" name="atl_token" value="tok-123">
<input type="text" name="os_username">
<input type="password" name="os_password">
</form></body></html>`)
	})
	stub.mux.HandleFunc("POST /login.jsp", func(w http.ResponseWriter, r *http.Request) {
		stub.logins++
		if r.FormValue("atl_token") != "tok-123" || r.FormValue("os_password") != stub.password {
			http.Redirect(w, r, "/login.jsp", http.StatusFound)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "session-abc", Path: "/"})
		http.Redirect(w, r, "/secure/Dashboard.jspa", http.StatusFound)
	})
	stub.mux.HandleFunc("/secure/Dashboard.jspa", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("JSESSIONID")
		if err != nil || c.Value != "session-abc" {
			http.Redirect(w, r, "/login.jsp", http.StatusFound)
			return
		}
		fmt.Fprint(w, "<html><body>System Dashboard</body></html>")
	})

	stub.server = httptest.NewServer(stub.mux)
	t.Cleanup(stub.server.Close)
	return stub
}

func newTestAuthenticator(t *testing.T, serverURL string) *Authenticator {
	t.Helper()
	cookieFile := filepath.Join(t.TempDir(), "cookies.json")
	auth, err := NewAuthenticator(serverURL, cookieFile, log.NewNop())
	require.NoError(t, err)
	return auth
}

func TestNewAuthenticator(t *testing.T) {
	t.Run("empty server URL", func(t *testing.T) {
		_, err := NewAuthenticator("", "", log.NewNop())
		assert.Error(t, err)
	})

	t.Run("trailing slash trimmed", func(t *testing.T) {
		auth, err := NewAuthenticator("https://jira.example.com/", "", log.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "https://jira.example.com", auth.ServerURL())
	})
}

func TestLoginWithCredentials(t *testing.T) {
	t.Run("successful login", func(t *testing.T) {
		stub := newJIRAStub(t)
		auth := newTestAuthenticator(t, stub.server.URL)

		err := auth.LoginWithCredentials(context.Background(), "jdoe", "s3cret")
		require.NoError(t, err)
		assert.True(t, auth.TestAuthentication(context.Background()))
	})

	t.Run("wrong password", func(t *testing.T) {
		stub := newJIRAStub(t)
		auth := newTestAuthenticator(t, stub.server.URL)

		err := auth.LoginWithCredentials(context.Background(), "jdoe", "wrong")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("missing credentials", func(t *testing.T) {
		auth := newTestAuthenticator(t, "http://jira.invalid")
		err := auth.LoginWithCredentials(context.Background(), "", "")
		assert.Error(t, err)
	})
}

func TestLoginWithCookies(t *testing.T) {
	t.Run("valid session cookie", func(t *testing.T) {
		stub := newJIRAStub(t)
		auth := newTestAuthenticator(t, stub.server.URL)

		err := auth.LoginWithCookies(context.Background(), map[string]string{
			"JSESSIONID": "session-abc",
		})
		require.NoError(t, err)
		assert.Zero(t, stub.logins, "cookie auth must not hit the login form")
	})

	t.Run("invalid cookie", func(t *testing.T) {
		stub := newJIRAStub(t)
		auth := newTestAuthenticator(t, stub.server.URL)

		err := auth.LoginWithCookies(context.Background(), map[string]string{
			"JSESSIONID": "stale",
		})
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("no cookies", func(t *testing.T) {
		auth := newTestAuthenticator(t, "http://jira.invalid")
		assert.Error(t, auth.LoginWithCookies(context.Background(), nil))
	})
}

func TestCookiePersistence(t *testing.T) {
	stub := newJIRAStub(t)
	cookieFile := filepath.Join(t.TempDir(), "cookies.json")

	first, err := NewAuthenticator(stub.server.URL, cookieFile, log.NewNop())
	require.NoError(t, err)
	require.NoError(t, first.LoginWithCredentials(context.Background(), "jdoe", "s3cret"))

	// A fresh authenticator reuses the saved session without logging in.
	loginsBefore := stub.logins
	second, err := NewAuthenticator(stub.server.URL, cookieFile, log.NewNop())
	require.NoError(t, err)
	require.NoError(t, second.EnsureAuthenticated(context.Background(), "", ""))
	assert.Equal(t, loginsBefore, stub.logins)

	t.Run("clear removes the session", func(t *testing.T) {
		require.NoError(t, second.ClearCookies())
		loaded, err := second.LoadCookies()
		require.NoError(t, err)
		assert.False(t, loaded)
		assert.False(t, second.TestAuthentication(context.Background()))
	})
}

func TestEnsureAuthenticated(t *testing.T) {
	t.Run("falls back to credentials", func(t *testing.T) {
		stub := newJIRAStub(t)
		auth := newTestAuthenticator(t, stub.server.URL)

		err := auth.EnsureAuthenticated(context.Background(), "jdoe", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, 1, stub.logins)
	})

	t.Run("no session and no credentials", func(t *testing.T) {
		stub := newJIRAStub(t)
		auth := newTestAuthenticator(t, stub.server.URL)

		err := auth.EnsureAuthenticated(context.Background(), "", "")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})
}
