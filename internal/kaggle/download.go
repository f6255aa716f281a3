// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package kaggle

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/pdiddy/dataset-fetcher/internal/handle"
)

// Progress receives download progress. Start is called once, before the
// first body byte, with the expected total (-1 when unknown) and the
// offset the download resumes from.
type Progress interface {
	io.Writer
	Start(total, offset int64)
}

// DownloadInfo describes a completed archive transfer.
type DownloadInfo struct {
	// URL is the request URL without credentials.
	URL string

	// Written is the size of the archive on disk, including any resumed prefix.
	Written int64

	// Transferred is the number of body bytes received in this transfer.
	Transferred int64

	// Total is the size advertised by the host, or -1 when unknown.
	Total int64

	ContentType string

	// FileName is the name the host served the archive under.
	FileName string

	// MD5 is the digest advertised in X-Goog-Hash, nil when absent.
	MD5 []byte

	// Resumed reports whether the transfer continued an earlier partial.
	Resumed bool
}

// DownloadURL returns the archive URL for version v of h.
func (c *Client) DownloadURL(h handle.Handle, v int) string {
	q := url.Values{"datasetVersionNumber": {strconv.Itoa(v)}}
	return c.BaseURL + datasetPath("download", h) + "?" + q.Encode()
}

// Download streams the archive for version v of h into dst, starting at
// offset. When offset > 0 a Range request is sent; if the host ignores it
// and answers 200 the file is truncated and the transfer restarts from
// zero. progress may be nil.
func (c *Client) Download(ctx context.Context, h handle.Handle, v int, dst *os.File, offset int64, progress Progress) (DownloadInfo, error) {
	q := url.Values{"datasetVersionNumber": {strconv.Itoa(v)}}
	req, err := c.newRequest(ctx, http.MethodGet, datasetPath("download", h), q)
	if err != nil {
		return DownloadInfo{}, err
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return DownloadInfo{}, err
	}
	defer resp.Body.Close()

	info := DownloadInfo{
		URL:         req.URL.Redacted(),
		Total:       -1,
		ContentType: resp.Header.Get("Content-Type"),
		FileName:    fileNameFrom(resp.Header.Get("Content-Disposition")),
		MD5:         md5From(resp.Header.Values("X-Goog-Hash")),
	}

	switch {
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		info.Resumed = true
		if total, ok := totalFromContentRange(resp.Header.Get("Content-Range")); ok {
			info.Total = total
		} else if resp.ContentLength >= 0 {
			info.Total = offset + resp.ContentLength
		}
	case resp.StatusCode == http.StatusOK:
		offset = 0
		if resp.ContentLength >= 0 {
			info.Total = resp.ContentLength
		}
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset > 0:
		// The partial is no longer a prefix of the served archive.
		io.Copy(io.Discard, resp.Body)
		if err := dst.Truncate(0); err != nil {
			return DownloadInfo{}, fmt.Errorf("truncating partial download: %w", err)
		}
		return c.Download(ctx, h, v, dst, 0, progress)
	default:
		return DownloadInfo{}, newAPIError(resp)
	}

	if err := dst.Truncate(offset); err != nil {
		return DownloadInfo{}, fmt.Errorf("truncating partial download: %w", err)
	}
	if _, err := dst.Seek(offset, io.SeekStart); err != nil {
		return DownloadInfo{}, fmt.Errorf("seeking partial download: %w", err)
	}

	var w io.Writer = dst
	if progress != nil {
		progress.Start(info.Total, offset)
		w = io.MultiWriter(dst, progress)
	}

	n, err := io.Copy(w, resp.Body)
	info.Written = offset + n
	info.Transferred = n
	if err != nil {
		return info, fmt.Errorf("writing download: %w", err)
	}
	return info, nil
}

// fileNameFrom extracts the filename parameter of a Content-Disposition header.
func fileNameFrom(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// md5From finds "md5=<base64>" among X-Goog-Hash values. The header may
// repeat or carry a comma-separated list (e.g. "crc32c=...,md5=...").
func md5From(values []string) []byte {
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			enc, ok := strings.CutPrefix(part, "md5=")
			if !ok {
				continue
			}
			sum, err := base64.StdEncoding.DecodeString(enc)
			if err == nil && len(sum) == 16 {
				return sum
			}
		}
	}
	return nil
}

// totalFromContentRange parses "bytes start-end/total".
func totalFromContentRange(cr string) (int64, bool) {
	_, total, ok := strings.Cut(cr, "/")
	if !ok || total == "*" {
		return 0, false
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
