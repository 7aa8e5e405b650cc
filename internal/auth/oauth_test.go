package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeProviderServer serves a token endpoint plus the given JSON routes.
func fakeProviderServer(t *testing.T, routes map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			http.Error(w, `{"error":"bad_verification_code"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"test-token","token_type":"bearer"}`))
	})
	for path, body := range routes {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer test-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(body)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testEndpoint(srv *httptest.Server) oauth2.Endpoint {
	return oauth2.Endpoint{AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}
}

func TestGitHubProvider_Exchange(t *testing.T) {
	srv := fakeProviderServer(t, map[string]any{
		"/user": githubUser{ID: 42, Login: "octo", Name: "Octo Cat", Email: "public@example.com", AvatarURL: "https://avatars/42"},
		"/user/emails": []githubEmail{
			{Email: "secondary@example.com", Verified: true},
			{Email: "primary@example.com", Primary: true, Verified: true},
		},
	})
	p := NewGitHubProvider("id", "secret", "http://localhost/auth/github/callback")
	p.config.Endpoint = testEndpoint(srv)
	p.apiBase = srv.URL

	profile, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, &Profile{
		Provider:      "github",
		ID:            "42",
		Email:         "primary@example.com",
		EmailVerified: true,
		Name:          "Octo Cat",
		Login:         "octo",
		AvatarURL:     "https://avatars/42",
	}, profile)

	_, err = p.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestGitHubProvider_UnverifiedEmail(t *testing.T) {
	srv := fakeProviderServer(t, map[string]any{
		"/user":        githubUser{ID: 7, Login: "ghost", Email: "ghost@example.com"},
		"/user/emails": []githubEmail{{Email: "ghost@example.com", Primary: true}},
	})
	p := NewGitHubProvider("id", "secret", "")
	p.config.Endpoint = testEndpoint(srv)
	p.apiBase = srv.URL

	profile, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.False(t, profile.EmailVerified)
	assert.Equal(t, "ghost@example.com", profile.Email)
}

func TestGoogleProvider_Exchange(t *testing.T) {
	srv := fakeProviderServer(t, map[string]any{
		"/userinfo": googleUser{Sub: "1098", Email: "ada@example.com", EmailVerified: true, Name: "Ada", Picture: "https://pic"},
	})
	p := NewGoogleProvider("id", "secret", "")
	p.config.Endpoint = testEndpoint(srv)
	p.userinfoURL = srv.URL + "/userinfo"

	profile, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "google", profile.Provider)
	assert.Equal(t, "1098", profile.ID)
	assert.True(t, profile.EmailVerified)
	assert.Equal(t, "https://pic", profile.AvatarURL)
}

func TestProvider_AuthURL(t *testing.T) {
	for _, p := range []Provider{
		NewGitHubProvider("gh-client", "s", "http://localhost/auth/github/callback"),
		NewGoogleProvider("g-client", "s", "http://localhost/auth/google/callback"),
	} {
		t.Run(p.Name(), func(t *testing.T) {
			u, err := url.Parse(p.AuthURL("state-123"))
			require.NoError(t, err)
			q := u.Query()
			assert.Equal(t, "state-123", q.Get("state"))
			assert.NotEmpty(t, q.Get("client_id"))
			assert.Contains(t, q.Get("redirect_uri"), "/auth/"+p.Name()+"/callback")
		})
	}
}
