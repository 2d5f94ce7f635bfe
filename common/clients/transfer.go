package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// TransferError is a failed direct transfer. It is terminal for that
// file only; retrying requires a fresh session because the credential
// is scoped to one key.
type TransferError struct {
	StatusCode int
	Err        error
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transfer failed: %v", e.Err)
	}
	return fmt.Sprintf("transfer failed with status %d", e.StatusCode)
}

func (e *TransferError) Unwrap() error { return e.Err }

// progressReader counts bytes as the transport consumes them and
// reports whole-percent changes. Reported percentages never decrease.
type progressReader struct {
	reader     io.Reader
	total      int64
	sent       int64
	lastPct    int
	onProgress func(pct int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.reader.Read(b)
	if n > 0 {
		p.sent += int64(n)
		pct := 100
		if p.total > 0 {
			pct = int(p.sent * 100 / p.total)
			if pct > 100 {
				pct = 100
			}
		}
		if pct > p.lastPct && p.onProgress != nil {
			p.lastPct = pct
			p.onProgress(pct)
		}
	}
	return n, err
}

// Transfer PUTs file bytes straight to the presigned write URL with the
// declared content type, reporting progress as an integer percentage.
func (c *UploadClient) Transfer(ctx context.Context, writeURL, contentType string, body io.Reader, size int64, onProgress func(pct int)) error {
	reader := &progressReader{
		reader:     body,
		total:      size,
		onProgress: onProgress,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, writeURL, reader)
	if err != nil {
		return &TransferError{Err: err}
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransferError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransferError{StatusCode: resp.StatusCode}
	}

	if onProgress != nil && reader.lastPct < 100 {
		onProgress(100)
	}

	return nil
}
