package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"ccm/internal/credentials"
)

const userAgent = "ccm/1.0"

// Progress receives download progress. Implementations must tolerate an
// unknown total (-1).
type Progress interface {
	Start(label string, total int64)
	Advance(n int64)
	Finish(err error)
}

// download streams url into the already-open dest file.
func (r *Repository) download(ctx context.Context, url string, creds *credentials.Credentials, dest *os.File, progress Progress, label string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &DownloadError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)
	if !creds.Empty() {
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DownloadError{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var body io.Reader = resp.Body
	if progress != nil {
		progress.Start(label, resp.ContentLength)
		body = &progressReader{r: resp.Body, progress: progress}
	}

	_, copyErr := io.Copy(dest, body)
	if progress != nil {
		progress.Finish(copyErr)
	}
	if copyErr != nil {
		return &DownloadError{URL: url, Err: fmt.Errorf("write temp file: %w", copyErr)}
	}
	return nil
}

type progressReader struct {
	r        io.Reader
	progress Progress
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.progress.Advance(int64(n))
	}
	return n, err
}
