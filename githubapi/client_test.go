package githubapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licenses.software/bundle/bundle"
	"licenses.software/bundle/resolver"
)

func TestParseRepo(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Repo
		ok    bool
	}{
		{name: "https url", input: "https://github.com/foo/bar", want: Repo{"foo", "bar"}, ok: true},
		{name: "http url with www", input: "http://www.github.com/foo/bar", want: Repo{"foo", "bar"}, ok: true},
		{name: "dot git suffix", input: "https://github.com/foo/bar.git", want: Repo{"foo", "bar"}, ok: true},
		{name: "scp-like remote", input: "git@github.com:foo/bar.git", want: Repo{"foo", "bar"}, ok: true},
		{name: "ssh url", input: "ssh://git@github.com/foo/bar", want: Repo{"foo", "bar"}, ok: true},
		{name: "monorepo subdirectory", input: "https://github.com/foo/bar/tree/main/sub/dir", want: Repo{"foo", "bar"}, ok: true},
		{name: "blob path", input: "https://github.com/foo/bar/blob/main/LICENSE", want: Repo{"foo", "bar"}, ok: true},
		{name: "module path", input: "github.com/foo/bar", want: Repo{"foo", "bar"}, ok: true},
		{name: "module path with major version", input: "github.com/foo/bar/v5", want: Repo{"foo", "bar"}, ok: true},
		{name: "other host", input: "https://gitlab.com/foo/bar", ok: false},
		{name: "vanity import", input: "golang.org/x/sync", ok: false},
		{name: "owner only", input: "https://github.com/foo", ok: false},
		{name: "empty", input: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, ok := ParseRepo(tt.input)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, repo)
			}
		})
	}
}

func licenseHandler(t *testing.T, status int, text, spdxID string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		resp := map[string]any{
			"license":  map[string]any{"spdx_id": spdxID},
			"content":  base64.StdEncoding.EncodeToString([]byte(text)),
			"encoding": "base64",
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(append([]Option{WithBaseURL(server.URL)}, opts...)...)
	require.NoError(t, err)
	return client
}

func TestResolveDetectedLicense(t *testing.T) {
	client := newTestClient(t, licenseHandler(t, http.StatusOK, "MIT License text", "MIT"))

	result, err := client.Resolve(t.Context(), bundle.Package{Name: "github.com/foo/bar", Version: "v1.0.0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"MIT License text"}, result.Texts)
	assert.Equal(t, "MIT", result.License)
}

func TestResolveUsesDeclaredRepositoryURL(t *testing.T) {
	var path atomic.Value
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		licenseHandler(t, http.StatusOK, "text", "MIT")(w, r)
	}))

	_, err := client.Resolve(t.Context(), bundle.Package{
		Name:       "example.com/vanity/module",
		Version:    "v1.0.0",
		Repository: "https://github.com/real/home",
	})
	require.NoError(t, err)
	assert.Equal(t, "/repos/real/home/license", path.Load())
}

func TestResolveUnrecognizedURL(t *testing.T) {
	client, err := NewClient()
	require.NoError(t, err)

	_, err = client.Resolve(t.Context(), bundle.Package{Name: "example.com/no/github", Version: "v1.0.0"})
	require.ErrorIs(t, err, resolver.ErrNotFound)
}

func TestResolveNotFoundResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "404", status: http.StatusNotFound},
		{name: "rate limited 403", status: http.StatusForbidden},
		{name: "rate limited 429", status: http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, licenseHandler(t, tt.status, "", ""))
			_, err := client.Resolve(t.Context(), bundle.Package{Name: "github.com/foo/bar", Version: "v1.0.0"})
			require.ErrorIs(t, err, resolver.ErrNotFound)
		})
	}
}

func TestResolveServerErrorIsNotNotFound(t *testing.T) {
	client := newTestClient(t, licenseHandler(t, http.StatusInternalServerError, "", ""))

	_, err := client.Resolve(t.Context(), bundle.Package{Name: "github.com/foo/bar", Version: "v1.0.0"})
	require.Error(t, err)
	require.NotErrorIs(t, err, resolver.ErrNotFound)
}

func TestResolveTimesOut(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}), WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := client.Resolve(t.Context(), bundle.Package{Name: "github.com/foo/bar", Version: "v1.0.0"})
	require.Error(t, err)
	require.Less(t, time.Since(start), time.Second)
}

func TestResolveMemoizesPerRepository(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		licenseHandler(t, http.StatusOK, "text", "MIT")(w, r)
	}))

	for _, name := range []string{"github.com/foo/bar", "github.com/foo/bar/sub", "github.com/foo/bar/v2"} {
		result, err := client.Resolve(t.Context(), bundle.Package{Name: name, Version: "v1.0.0"})
		require.NoError(t, err)
		require.Equal(t, []string{"text"}, result.Texts)
	}
	assert.Equal(t, int32(1), requests.Load())
}

func TestResolveMemoizesMisses(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	for range 2 {
		_, err := client.Resolve(t.Context(), bundle.Package{Name: "github.com/foo/bar", Version: "v1.0.0"})
		require.ErrorIs(t, err, resolver.ErrNotFound)
	}
	assert.Equal(t, int32(1), requests.Load())
}

func TestResolveMalformedResponse(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))

	_, err := client.Resolve(t.Context(), bundle.Package{Name: "github.com/foo/bar", Version: "v1.0.0"})
	require.Error(t, err)
	require.NotErrorIs(t, err, resolver.ErrNotFound)
}
