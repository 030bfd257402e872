package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	// Recording must not panic once collectors exist.
	PageFetched(200)
	FetchFailed("card")
	ArchiveDownloaded(1024)
	ArchiveSkipped()
	MemberExtracted()
	UnsafeMemberRejected()
	BadArchive()
	FileConverted("shift_jis")
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	FileConverted("euc-jp")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "aozora_conversions_total")
}
