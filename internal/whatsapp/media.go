package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxMediaBytes caps downloads; WhatsApp images are at most 5 MB.
const maxMediaBytes = 16 << 20

// Media is the metadata Graph returns for a media id.
type Media struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// MediaInfo resolves a media id to its short-lived download URL.
func (c *Client) MediaInfo(ctx context.Context, creds Credentials, mediaID string) (*Media, error) {
	if strings.TrimSpace(mediaID) == "" {
		return nil, requestError(errors.New("media id required"))
	}
	resolved, err := c.credentials(creds)
	if err != nil {
		return nil, err
	}
	data, err := c.invoke(ctx, resolved.Token, http.MethodGet, c.baseURL+"/"+mediaID, nil, "")
	if err != nil {
		return nil, err
	}
	var media Media
	if err := json.Unmarshal(data, &media); err != nil {
		return nil, requestError(fmt.Errorf("decode media: %w", err))
	}
	if media.URL == "" {
		return nil, requestError(errors.New("media url missing from response"))
	}
	return &media, nil
}

// FetchMedia downloads the bytes behind a media id. The download URL needs
// the same bearer token as the API.
func (c *Client) FetchMedia(ctx context.Context, creds Credentials, mediaID string) ([]byte, string, error) {
	media, err := c.MediaInfo(ctx, creds, mediaID)
	if err != nil {
		return nil, "", err
	}
	resolved := c.Resolve(creds)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, media.URL, nil)
	if err != nil {
		return nil, "", requestError(fmt.Errorf("build media request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+resolved.Token)
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", noResponseError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", decodeAPIError(resp.StatusCode, body)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, "", noResponseError(fmt.Errorf("read media: %w", err))
	}
	if len(data) > maxMediaBytes {
		return nil, "", requestError(fmt.Errorf("media exceeds %d bytes", maxMediaBytes))
	}
	return data, media.MimeType, nil
}
