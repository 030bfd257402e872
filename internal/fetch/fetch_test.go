package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/japanese"
)

func TestCollyFetcherSuccess(t *testing.T) {
	t.Parallel()

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := NewCollyFetcher("test-agent/1.0", 5*time.Second, zap.NewNop())
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, string(page.Body), "ok")
	require.Equal(t, "test-agent/1.0", gotUA)
}

func TestCollyFetcherNonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewCollyFetcher("test-agent/1.0", 5*time.Second, zap.NewNop())
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err, "non-2xx responses must surface as errors")
}

func TestDecodeHTMLHonorsDeclaredCharset(t *testing.T) {
	t.Parallel()

	page := Page{
		URL:     "http://example.org/",
		Headers: http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:    []byte("<p>青空</p>"),
	}
	text, err := DecodeHTML(page, "shift_jis")
	require.NoError(t, err)
	require.Contains(t, text, "青空")
}

func TestDecodeHTMLFallsBackToLegacyEncoding(t *testing.T) {
	t.Parallel()

	encoded, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte("<p>青空文庫</p>"))
	require.NoError(t, err)

	page := Page{
		URL:     "http://example.org/",
		Headers: http.Header{"Content-Type": []string{"text/html"}},
		Body:    encoded,
	}
	text, err := DecodeHTML(page, "shift_jis")
	require.NoError(t, err)
	require.Contains(t, text, "青空文庫")
}

func TestDecodeHTMLUnknownEncoding(t *testing.T) {
	t.Parallel()

	page := Page{URL: "http://example.org/", Headers: http.Header{}, Body: []byte("x")}
	_, err := DecodeHTML(page, "no-such-encoding")
	require.Error(t, err)
}

func TestTimerPauserHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var pauser TimerPauser
	start := time.Now()
	pauser.Pause(ctx, 5*time.Second)
	require.Less(t, time.Since(start), time.Second, "pause should exit immediately when context is done")
}
