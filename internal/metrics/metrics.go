// Package metrics exposes Prometheus collectors for the mirror pipelines.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesFetchedTotal       *prometheus.CounterVec
	fetchFailuresTotal      *prometheus.CounterVec
	archivesDownloadedTotal prometheus.Counter
	archivesSkippedTotal    prometheus.Counter
	archiveBytesTotal       prometheus.Counter
	membersExtractedTotal   prometheus.Counter
	unsafeMembersTotal      prometheus.Counter
	badArchivesTotal        prometheus.Counter
	conversionsTotal        *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aozora_pages_fetched_total",
				Help: "Total number of HTML pages fetched, labeled by status.",
			},
			[]string{"status"},
		)

		fetchFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aozora_fetch_failures_total",
				Help: "Total number of failed network fetches, labeled by stage.",
			},
			[]string{"stage"},
		)

		archivesDownloadedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "aozora_archives_downloaded_total",
				Help: "Total number of archives fully downloaded.",
			},
		)

		archivesSkippedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "aozora_archives_skipped_total",
				Help: "Total number of archives skipped because a complete copy exists.",
			},
		)

		archiveBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "aozora_archive_bytes_total",
				Help: "Total archive bytes written to disk.",
			},
		)

		membersExtractedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "aozora_members_extracted_total",
				Help: "Total number of archive members extracted.",
			},
		)

		unsafeMembersTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "aozora_unsafe_members_total",
				Help: "Total number of archive members rejected by the path-safety check.",
			},
		)

		badArchivesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "aozora_bad_archives_total",
				Help: "Total number of archives skipped as malformed.",
			},
		)

		conversionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aozora_conversions_total",
				Help: "Total number of files converted to UTF-8, labeled by source encoding.",
			},
			[]string{"encoding"},
		)
	})
}

// PageFetched records one fetched HTML page.
func PageFetched(status int) {
	if pagesFetchedTotal != nil {
		pagesFetchedTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	}
}

// FetchFailed records one failed fetch for the given pipeline stage.
func FetchFailed(stage string) {
	if fetchFailuresTotal != nil {
		fetchFailuresTotal.WithLabelValues(stage).Inc()
	}
}

// ArchiveDownloaded records one completed archive download of n bytes.
func ArchiveDownloaded(n int64) {
	if archivesDownloadedTotal != nil {
		archivesDownloadedTotal.Inc()
		archiveBytesTotal.Add(float64(n))
	}
}

// ArchiveSkipped records one download skipped as already complete.
func ArchiveSkipped() {
	if archivesSkippedTotal != nil {
		archivesSkippedTotal.Inc()
	}
}

// MemberExtracted records one extracted archive member.
func MemberExtracted() {
	if membersExtractedTotal != nil {
		membersExtractedTotal.Inc()
	}
}

// UnsafeMemberRejected records one member rejected by the containment check.
func UnsafeMemberRejected() {
	if unsafeMembersTotal != nil {
		unsafeMembersTotal.Inc()
	}
}

// BadArchive records one archive skipped as malformed.
func BadArchive() {
	if badArchivesTotal != nil {
		badArchivesTotal.Inc()
	}
}

// FileConverted records one text file rewritten as UTF-8.
func FileConverted(encoding string) {
	if conversionsTotal != nil {
		conversionsTotal.WithLabelValues(encoding).Inc()
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
