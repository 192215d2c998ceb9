// Package workers implements the five concrete Stage Workers: VodDownloader,
// ChatDownloader, ChatRenderer, FinalRenderer, and VideoUploader.
package workers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/vodarchiver/archiver/log"
	"github.com/vodarchiver/archiver/metrics"
	"github.com/vodarchiver/archiver/pipeline"
	"github.com/vodarchiver/archiver/xerrors"
)

// SourcePlatform resolves a VodId to the URLs its source video and chat log
// can be fetched from. The concrete implementation (talking to whichever
// streaming platform's API) is an external collaborator per spec.md §1;
// this interface is the seam the pipeline depends on.
type SourcePlatform interface {
	VodDownloadURL(vodID string) string
	ChatDownloadURL(vodID string) string
}

// newRetryableClient mirrors the teacher's clients.newRetryableHttpClient:
// a bounded number of retries with exponential backoff, a generous but
// finite overall timeout, and the package's own leveled logger so HTTP
// retries show up through the normal logging path instead of stderr noise.
func newRetryableClient(timeout time.Duration) *http.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 5
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = log.NewRetryableHTTPLogger()
	client.CheckRetry = metrics.HttpRetryHook
	client.HTTPClient = &http.Client{Timeout: timeout}
	return client.StandardClient()
}

// downloadProgressEvery bounds how often downloadToFile emits a status
// update while streaming a large response body.
const downloadProgressEvery = 4 * 1024 * 1024

// downloadToFile streams url's body to destPath, overwriting any partial
// file left by a prior crash (idempotence per spec.md §4.3), emitting a
// StatusUpdate roughly every downloadProgressEvery bytes.
func downloadToFile(ctx context.Context, client *http.Client, vodID, url, destPath string, updates chan<- pipeline.StatusUpdate) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return pipeline.Permanent(fmt.Errorf("building download request: %w", err))
	}

	resp, err := metrics.MonitorRequest(metrics.Metrics.DownloadClient, client, req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return xerrors.NewObjectNotFoundError(fmt.Sprintf("downloading %s: not found", url), nil)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return pipeline.Permanent(fmt.Errorf("downloading %s: status %d", url, resp.StatusCode))
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("downloading %s: status %d", url, resp.StatusCode)
	}

	tmpPath := destPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	written, err := copyWithProgress(ctx, out, resp.Body, vodID, updates)
	closeErr := out.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", destPath, err)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", destPath, closeErr)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("finalizing %s: %w", destPath, err)
	}

	updates <- pipeline.StatusUpdate{Message: fmt.Sprintf("downloaded %d bytes", written)}
	return nil
}

func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, vodID string, updates chan<- pipeline.StatusUpdate) (int64, error) {
	buf := make([]byte, 32*1024)
	var total, sinceLastReport int64
	for {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return total, writeErr
			}
			total += int64(n)
			sinceLastReport += int64(n)
			if sinceLastReport >= downloadProgressEvery {
				sinceLastReport = 0
				updates <- pipeline.StatusUpdate{Message: fmt.Sprintf("downloaded %d bytes", total)}
			}
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}
