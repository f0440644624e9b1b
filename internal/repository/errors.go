package repository

import "fmt"

// DownloadError wraps a transport failure while fetching an archive.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// ArchiveError reports a corrupt or unreadable archive.
type ArchiveError struct {
	Path string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("unable to uncompress downloaded file %s: %v", e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// CacheConsistencyError reports a cache entry found in a state the
// stage-then-rename protocol should never produce.
type CacheConsistencyError struct {
	Path   string
	Reason string
}

func (e *CacheConsistencyError) Error() string {
	return fmt.Sprintf("inconsistent cache entry %s: %s", e.Path, e.Reason)
}
