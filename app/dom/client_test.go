package dom

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("example.com", "", "")
	assert.Error(t, err)

	_, err = NewClient("ftp://example.com", "", "")
	assert.Error(t, err)

	client, err := NewClient("https://example.com/some/path?q=1", "", "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", client.Origin().String())
}

func TestClient_Resolve(t *testing.T) {
	client, err := NewClient("https://example.com", "", "")
	require.NoError(t, err)

	u, err := client.Resolve("/dashboard/lists/abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/dashboard/lists/abc123", u.String())

	_, err = client.Resolve("https://other.example.org/dashboard")
	assert.ErrorContains(t, err, "cross-origin")
}

func TestClient_Get(t *testing.T) {
	var gotAccept, gotAgent, gotSession string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotAgent = r.Header.Get("User-Agent")
		if c, err := r.Cookie("session"); err == nil {
			gotSession = c.Value
		}

		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><body><main>hello</main></body></html>`)
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "session=s3cret", "badge-comb/test")
	require.NoError(t, err)

	doc, err := client.Get(context.Background(), "/ok")
	require.NoError(t, err)
	assert.False(t, doc.Attached())
	assert.Equal(t, "hello", doc.Selection().Find("main").Text())
	assert.Equal(t, "/ok", doc.URL().Path)

	assert.Equal(t, "text/html", gotAccept)
	assert.Equal(t, "badge-comb/test", gotAgent)
	assert.Equal(t, "s3cret", gotSession)

	_, err = client.Get(context.Background(), "/missing")
	assert.ErrorContains(t, err, "404")

	_, err = client.Get(context.Background(), "/json")
	assert.ErrorContains(t, err, "not HTML")
}
