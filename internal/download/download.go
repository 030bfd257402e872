// Package download writes collected archives to disk under sequential names.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/aozoratools/aozorafetch/internal/collector"
	"github.com/aozoratools/aozorafetch/internal/fetch"
	"github.com/aozoratools/aozorafetch/internal/hash/sha256"
	"github.com/aozoratools/aozorafetch/internal/metrics"
)

const (
	archiveExt = ".zip"
	partSuffix = ".part"
)

// SequentialName returns the file name for the index-th archive
// (1-based) out of total. Indices are zero-padded to at least six
// digits; the width grows when total needs more.
func SequentialName(index, total int) string {
	width := len(strconv.Itoa(total))
	if width < 6 {
		width = 6
	}
	return fmt.Sprintf("%0*d%s", width, index, archiveExt)
}

// Downloader streams archives to disk, one at a time.
// Archives are large relative to HTML pages, so it uses a plain
// streaming HTTP client rather than the page fetcher, which buffers
// whole bodies.
type Downloader struct {
	client    *http.Client
	userAgent string
	delay     time.Duration
	pauser    fetch.Pauser
	logger    *zap.Logger
}

// New constructs a Downloader.
func New(userAgent string, timeout, delay time.Duration, pauser fetch.Pauser, logger *zap.Logger) *Downloader {
	return &Downloader{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		userAgent: userAgent,
		delay:     delay,
		pauser:    pauser,
		logger:    logger,
	}
}

// Run downloads every link into dir under its sequential name.
// A failed download is logged and skipped; it never aborts the batch.
func (d *Downloader) Run(ctx context.Context, dir string, links []collector.ArchiveLink) error {
	if len(links) == 0 {
		d.logger.Info("No archives to download")
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output dir %s: %w", dir, err)
	}

	for i, link := range links {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest := filepath.Join(dir, SequentialName(i+1, len(links)))
		skipped, err := d.Download(ctx, link.URL, dest)
		if err != nil {
			d.logger.Error("Failed to download archive",
				zap.String("url", link.URL),
				zap.String("title", link.Title),
				zap.Error(err),
			)
			metrics.FetchFailed("archive")
		}
		if skipped {
			continue
		}
		d.pauser.Pause(ctx, d.delay)
	}
	return nil
}

// Download fetches rawURL into dest. It is a no-op when dest already
// exists with a non-zero size. The body is streamed to a temporary
// sibling first and renamed only once complete, so dest is either
// absent or whole. The returned bool reports whether the download was
// skipped without touching the network.
func (d *Downloader) Download(ctx context.Context, rawURL, dest string) (bool, error) {
	if fi, err := os.Stat(dest); err == nil && fi.Size() > 0 {
		d.logger.Info("Skipping archive, already downloaded",
			zap.String("file", filepath.Base(dest)),
		)
		metrics.ArchiveSkipped()
		return true, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return false, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	tmp := dest + partSuffix
	n, digest, err := writeTemp(tmp, resp.Body)
	if err != nil {
		return false, err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return false, fmt.Errorf("finalize %s: %w", dest, err)
	}

	metrics.ArchiveDownloaded(n)
	d.logger.Info("Downloaded archive",
		zap.String("file", filepath.Base(dest)),
		zap.Int64("bytes", n),
		zap.String("sha256", digest),
	)
	return false, nil
}

// writeTemp streams body into tmp and returns the byte count and digest.
// The temp file is removed on any failure.
func writeTemp(tmp string, body io.Reader) (int64, string, error) {
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, "", fmt.Errorf("create temp file %s: %w", tmp, err)
	}
	digest := sha256.NewDigestWriter()
	n, err := io.Copy(io.MultiWriter(f, digest), body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, "", fmt.Errorf("write temp file %s: %w", tmp, err)
	}
	return n, digest.Sum(), nil
}
