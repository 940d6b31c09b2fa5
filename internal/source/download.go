package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/avast/retry-go/v4"

	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
)

// download fetches rawURL, retrying transport failures and 5xx/429 responses
func (l *Loader) download(ctx context.Context, rawURL string) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, pdferrors.NewConfigError("invalid PDF URL %q: must be an absolute http or https URL", rawURL)
	}

	var doc *Document
	attempt := 0
	err = retry.Do(
		func() error {
			attempt++
			d, err := l.fetch(ctx, u)
			if err != nil {
				l.logger.Debug("download failed", "url", u.Redacted(), "attempt", attempt, "error", err)
				return err
			}
			doc = d
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(l.opts.DownloadAttempts),
		retry.Delay(l.opts.RetryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var pe *pdferrors.PDFError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeRuntime,
			fmt.Errorf("failed to download PDF after %d attempt(s): %w", attempt, err)).WithContext("download")
	}
	return doc, nil
}

func (l *Loader) fetch(ctx context.Context, u *url.URL) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	req.Header.Set("Accept", "application/pdf, application/octet-stream;q=0.9, */*;q=0.1")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("server returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, retry.Unrecoverable(
			pdferrors.NewDataError("PDF download from %s failed: %s", u.Redacted(), resp.Status).WithContext("download"))
	}

	if l.opts.MaxSize > 0 && resp.ContentLength > l.opts.MaxSize {
		return nil, retry.Unrecoverable(
			pdferrors.NewDataError("PDF file too large: %d bytes (max: %d bytes)", resp.ContentLength, l.opts.MaxSize))
	}

	body := io.Reader(resp.Body)
	if l.opts.MaxSize > 0 {
		body = io.LimitReader(resp.Body, l.opts.MaxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if l.opts.MaxSize > 0 && int64(len(data)) > l.opts.MaxSize {
		return nil, retry.Unrecoverable(
			pdferrors.NewDataError("PDF file too large: more than %d bytes", l.opts.MaxSize))
	}

	return &Document{Data: data, FileName: fileNameFor(u, resp.Header.Get("Content-Disposition"))}, nil
}

// fileNameFor prefers the Content-Disposition file name, then the last path
// segment of the URL
func fileNameFor(u *url.URL, disposition string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
			return path.Base(params["filename"])
		}
	}
	if base := path.Base(u.Path); base != "/" && base != "." && base != "" {
		if !strings.HasSuffix(strings.ToLower(base), ".pdf") {
			base += ".pdf"
		}
		return base
	}
	return "document.pdf"
}
