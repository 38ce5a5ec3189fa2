// Package tmpfiles uploads finished videos to tmpfiles.org so the scheduling
// service can fetch them by URL.
package tmpfiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultUploadURL is the public upload endpoint.
const DefaultUploadURL = "https://tmpfiles.org/api/v1/upload"

// Client posts multipart uploads.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient builds an uploader; timeout bounds the whole request.
func NewClient(endpoint string, timeout time.Duration) *Client {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultUploadURL
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{endpoint: endpoint, httpClient: &http.Client{Timeout: timeout}}
}

type uploadResponse struct {
	Status string `json:"status"`
	Data   struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Upload sends the file and returns its direct download URL.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("upload: open %s: %w", path, err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	defer pr.Close()
	writer := multipart.NewWriter(pw)
	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
		header.Set("Content-Type", "video/mp4")
		part, err := writer.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, pr)
	if err != nil {
		return "", fmt.Errorf("upload: new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("upload: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("upload: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var decoded uploadResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("upload: decode response: %w", err)
	}
	if decoded.Status != "success" || decoded.Data.URL == "" {
		return "", errors.New("upload: rejected: " + strings.TrimSpace(string(body)))
	}
	return DirectURL(decoded.Data.URL), nil
}

// DirectURL turns a tmpfiles view page into its raw download address.
func DirectURL(viewURL string) string {
	if strings.Contains(viewURL, "tmpfiles.org/dl/") {
		return viewURL
	}
	return strings.Replace(viewURL, "tmpfiles.org/", "tmpfiles.org/dl/", 1)
}
