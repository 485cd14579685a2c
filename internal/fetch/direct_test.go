package fetch

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spiderd/internal/model"
	"spiderd/internal/retry"
)

func TestDirectClient_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>hello world, this is a long enough page body</body></html>"))
	}))
	defer srv.Close()

	c := NewDirectClient(5 * time.Second)
	resp, err := c.Fetch(t.Context(), model.HttpRequest{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Content, "hello world")
}

func TestDirectClient_4xxIsRetryableWith2sHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewDirectClient(5 * time.Second)
	_, err := c.Fetch(t.Context(), model.HttpRequest{URL: srv.URL})
	require.Error(t, err)

	fe, ok := retry.AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, fe.RetryAfter)
}

func TestDirectClient_5xxIsRetryableWith10sHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewDirectClient(5 * time.Second)
	_, err := c.Fetch(t.Context(), model.HttpRequest{URL: srv.URL})
	require.Error(t, err)

	fe, ok := retry.AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, fe.RetryAfter)
}

func TestDirectClient_SmallBodyAfterRedirect(t *testing.T) {
	var finalURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, finalURL, http.StatusFound)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tiny"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	finalURL = srv.URL + "/end"

	c := NewDirectClient(5 * time.Second)
	_, err := c.Fetch(t.Context(), model.HttpRequest{URL: srv.URL + "/start"})
	require.Error(t, err)

	fe, ok := retry.AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, 100*time.Millisecond, fe.RetryAfter)
}
