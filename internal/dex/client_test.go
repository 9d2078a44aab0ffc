package dex_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fusiondex/internal/dex"
	"fusiondex/internal/fusion"
)

func fixtureServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	page, err := os.ReadFile("testdata/details_1.4.html")
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/details/1.4", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("User-Agent") != "fusiondex-test" {
			http.Error(w, "missing agent", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(page)
	})
	mux.HandleFunc("/details/2.3", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	})
	mux.HandleFunc("/details/5.6", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("<html><body>maintenance</body></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server) *dex.Client {
	t.Helper()
	client, err := dex.New(srv.URL+"/details",
		dex.WithHTTPClient(srv.Client()),
		dex.WithUserAgent("fusiondex-test"),
		dex.WithRequestsPerSecond(0))
	require.NoError(t, err)
	return client
}

func TestFetchNormalizesPairAndParses(t *testing.T) {
	var hits atomic.Int32
	srv := fixtureServer(t, &hits)
	client := newClient(t, srv)

	records, err := client.Fetch(context.Background(), fusion.Pair{Primary: 4, Secondary: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "one request per pair")
	require.Contains(t, records, fusion.Key("#1.4"))
	require.Contains(t, records, fusion.Key("#4.1"))
	assert.Equal(t, srv.URL+"/details/1.4", records["#1.4"].SourceURL)
	assert.Equal(t, srv.URL+"/sprites/custom/1.4.png", records["#1.4"].SpriteURL)
}

func TestFetchReportsHTTPStatus(t *testing.T) {
	var hits atomic.Int32
	client := newClient(t, fixtureServer(t, &hits))

	_, err := client.Fetch(context.Background(), fusion.Pair{Primary: 3, Secondary: 2})
	require.Error(t, err)
	var fe *dex.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, dex.ReasonStatus, fe.Reason)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, fusion.Pair{Primary: 2, Secondary: 3}, fe.Pair)
}

func TestFetchReportsStructureFailure(t *testing.T) {
	var hits atomic.Int32
	client := newClient(t, fixtureServer(t, &hits))

	_, err := client.Fetch(context.Background(), fusion.Pair{Primary: 5, Secondary: 6})
	require.Error(t, err)
	assert.Equal(t, dex.ReasonStructure, dex.ReasonOf(err))
	assert.ErrorIs(t, err, dex.ErrStructure)
}

func TestFetchReportsNetworkFailure(t *testing.T) {
	var hits atomic.Int32
	srv := fixtureServer(t, &hits)
	client := newClient(t, srv)
	srv.Close()

	_, err := client.Fetch(context.Background(), fusion.Pair{Primary: 1, Secondary: 4})
	require.Error(t, err)
	assert.Equal(t, dex.ReasonNetwork, dex.ReasonOf(err))
}

func TestFetchRejectsInvalidPair(t *testing.T) {
	client, err := dex.New("http://127.0.0.1:1/details/")
	require.NoError(t, err)
	_, err = client.Fetch(context.Background(), fusion.Pair{Primary: 7, Secondary: 7})
	require.ErrorIs(t, err, fusion.ErrInvalidKey)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := dex.New("  ")
	require.Error(t, err)
}
