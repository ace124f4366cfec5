package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiplog/shiplog/pkg/config"
)

func githubConfig(apiURL string) *config.Resolved {
	return &config.Resolved{
		Provider:    "github",
		Repo:        "acme/widgets",
		ReleaseRepo: "acme/widgets",
		BaseURL:     "https://github.com",
		BaseAPIURL:  apiURL,
		To:          "v1.0.0",
		Name:        "v1.0.0",
		Token:       "secret",
	}
}

func TestGitHubHasTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/acme/widgets/git/ref/tags/v1.0.0" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	gw := newGitHub(githubConfig(server.URL), discardLogger())

	found, err := gw.HasTag(context.Background(), "v1.0.0")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = gw.HasTag(context.Background(), "v9.9.9")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGitHubSendReleaseCreates(t *testing.T) {
	var methods []string
	var created map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/acme/widgets/releases/tags/v1.0.0":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost && r.URL.Path == "/repos/acme/widgets/releases":
			methods = append(methods, r.Method)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	gw := newGitHub(githubConfig(server.URL), discardLogger())
	require.NoError(t, gw.SendRelease(context.Background(), "body text"))

	assert.Equal(t, []string{http.MethodPost}, methods)
	assert.Equal(t, "v1.0.0", created["tag_name"])
	assert.Equal(t, "body text", created["body"])
}

func TestGitHubSendReleaseUpdatesExisting(t *testing.T) {
	var patched bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/acme/widgets/releases/tags/v1.0.0":
			json.NewEncoder(w).Encode(map[string]any{"id": 7})
		case r.Method == http.MethodPatch && r.URL.Path == "/repos/acme/widgets/releases/7":
			patched = true
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	gw := newGitHub(githubConfig(server.URL), discardLogger())
	require.NoError(t, gw.SendRelease(context.Background(), "updated body"))
	assert.True(t, patched)
}

func TestGitHubUploadAssetsIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.zip")
	good := filepath.Join(dir, "good.zip")
	require.NoError(t, os.WriteFile(broken, []byte("broken"), 0o644))
	require.NoError(t, os.WriteFile(good, []byte("good"), 0o644))

	var mu sync.Mutex
	var uploaded []string

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/acme/widgets/releases/tags/v1.0.0":
			json.NewEncoder(w).Encode(map[string]any{
				"id":         7,
				"upload_url": server.URL + "/uploads{?name,label}",
			})
		case r.Method == http.MethodPost && r.URL.Path == "/uploads":
			name := r.URL.Query().Get("name")
			if name == "broken.zip" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			mu.Lock()
			uploaded = append(uploaded, name)
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	gw := newGitHub(githubConfig(server.URL), discardLogger())

	// The failing asset must not abort the remaining uploads.
	require.NoError(t, gw.UploadAssets(context.Background(), []string{broken, good}))
	assert.Equal(t, []string{"good.zip"}, uploaded)
}

func TestGitHubUploadAssetsWithoutRelease(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	gw := newGitHub(githubConfig(server.URL), discardLogger())
	err := gw.UploadAssets(context.Background(), []string{"a.zip"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no release found")
}

func TestGitHubLoginByEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/users", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{{"login": "janedoe"}},
		})
	}))
	defer server.Close()

	gw := newGitHub(githubConfig(server.URL), discardLogger())
	login, err := gw.loginByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "janedoe", login)
}
