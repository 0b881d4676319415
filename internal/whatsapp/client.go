// Package whatsapp is a thin client for the WhatsApp Cloud (Graph) API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

const (
	defaultBaseURL    = "https://graph.facebook.com"
	defaultAPIVersion = "v18.0"
	defaultUserAgent  = "whatsapp-clinic-bot/0.1"
)

// Config controls how the client behaves.
type Config struct {
	BaseURL       string
	APIVersion    string
	Token         string
	PhoneNumberID string
	Timeout       time.Duration
	MaxRetries    int
	Backoff       time.Duration
	HTTPClient    *http.Client
	Logger        *logging.Logger
	UserAgent     string
}

// Credentials identify the business number a message is sent from.
type Credentials struct {
	Token         string
	PhoneNumberID string
}

// Complete reports whether both halves are present.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.PhoneNumberID) != ""
}

// Client sends messages through the Graph API. Calls take an optional
// per-doctor Credentials override; the master credentials are used otherwise.
type Client struct {
	baseURL    string
	master     Credentials
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *logging.Logger
	userAgent  string
}

// New creates a configured Client. Master credentials may be empty when
// every doctor carries an override.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	version := strings.Trim(strings.TrimSpace(cfg.APIVersion), "/")
	if version == "" {
		version = defaultAPIVersion
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:    baseURL + "/" + version,
		master:     Credentials{Token: cfg.Token, PhoneNumberID: cfg.PhoneNumberID},
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
		userAgent:  userAgent,
	}
}

// Resolve picks the override when it is complete, else the master set.
func (c *Client) Resolve(override Credentials) Credentials {
	if override.Complete() {
		return override
	}
	return c.master
}

func (c *Client) credentials(override Credentials) (Credentials, error) {
	creds := c.Resolve(override)
	if strings.TrimSpace(creds.Token) == "" {
		return creds, requestError(errors.New("whatsapp access token is not available"))
	}
	if strings.TrimSpace(creds.PhoneNumberID) == "" {
		return creds, requestError(errors.New("whatsapp phone number id is not available"))
	}
	return creds, nil
}

// SendText sends a plain text message with link previews disabled.
func (c *Client) SendText(ctx context.Context, creds Credentials, to, body string) (*SendResponse, error) {
	if strings.TrimSpace(body) == "" {
		return nil, requestError(errors.New("message body required"))
	}
	return c.send(ctx, creds, to, outbound{
		Type: "text",
		Text: &textBody{PreviewURL: false, Body: body},
	})
}

// SendInteractiveList sends a list picker behind a "View Options" button.
func (c *Client) SendInteractiveList(ctx context.Context, creds Credentials, to, header, body string, sections []Section) (*SendResponse, error) {
	if len(sections) == 0 {
		return nil, requestError(errors.New("at least one list section required"))
	}
	msg := outbound{
		Type: "interactive",
		Interactive: &interactive{
			Type:   "list",
			Body:   textOnly{Text: body},
			Action: interactiveAction{Button: "View Options", Sections: sections},
		},
	}
	if strings.TrimSpace(header) != "" {
		msg.Interactive.Header = &interactiveHeader{Type: "text", Text: header}
	}
	return c.send(ctx, creds, to, msg)
}

// SendButtons sends up to three reply buttons.
func (c *Client) SendButtons(ctx context.Context, creds Credentials, to, body string, buttons []Button) (*SendResponse, error) {
	if len(buttons) == 0 || len(buttons) > 3 {
		return nil, requestError(fmt.Errorf("between 1 and 3 buttons allowed, got %d", len(buttons)))
	}
	replies := make([]replyButton, 0, len(buttons))
	for _, b := range buttons {
		replies = append(replies, replyButton{Type: "reply", Reply: b})
	}
	return c.send(ctx, creds, to, outbound{
		Type: "interactive",
		Interactive: &interactive{
			Type:   "button",
			Body:   textOnly{Text: body},
			Action: interactiveAction{Buttons: replies},
		},
	})
}

// SendLocation sends a map pin.
func (c *Client) SendLocation(ctx context.Context, creds Credentials, to string, loc Location) (*SendResponse, error) {
	return c.send(ctx, creds, to, outbound{
		Type: "location",
		Location: &locationBody{
			Latitude:  formatCoord(loc.Latitude),
			Longitude: formatCoord(loc.Longitude),
			Name:      loc.Name,
			Address:   loc.Address,
		},
	})
}

// SendTemplate sends a pre-approved template, usable outside the 24h window.
func (c *Client) SendTemplate(ctx context.Context, creds Credentials, to, name, languageCode string, components []TemplateComponent) (*SendResponse, error) {
	if strings.TrimSpace(name) == "" {
		return nil, requestError(errors.New("template name required"))
	}
	if languageCode == "" {
		languageCode = "en_US"
	}
	return c.send(ctx, creds, to, outbound{
		Type: "template",
		Template: &templateBody{
			Name:       name,
			Language:   templateLanguage{Code: languageCode},
			Components: components,
		},
	})
}

// SendDocument uploads file to /media and sends it as a document message.
func (c *Client) SendDocument(ctx context.Context, creds Credentials, to string, file []byte, filename, mimeType, caption string) (*SendResponse, error) {
	if len(file) == 0 {
		return nil, requestError(errors.New("document is empty"))
	}
	resolved, err := c.credentials(creds)
	if err != nil {
		return nil, err
	}
	mediaID, err := c.uploadMedia(ctx, resolved, file, filename, mimeType)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, resolved, to, outbound{
		Type:     "document",
		Document: &documentBody{ID: mediaID, Filename: filename, Caption: caption},
	})
}

func (c *Client) uploadMedia(ctx context.Context, creds Credentials, file []byte, filename, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", requestError(fmt.Errorf("write field: %w", err))
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", requestError(fmt.Errorf("create form file: %w", err))
	}
	if _, err := part.Write(file); err != nil {
		return "", requestError(fmt.Errorf("copy document: %w", err))
	}
	if err := writer.Close(); err != nil {
		return "", requestError(fmt.Errorf("close multipart: %w", err))
	}
	data, err := c.invoke(ctx, creds.Token, http.MethodPost, c.baseURL+"/"+creds.PhoneNumberID+"/media", buf.Bytes(), writer.FormDataContentType())
	if err != nil {
		return "", err
	}
	var uploaded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &uploaded); err != nil || uploaded.ID == "" {
		return "", requestError(fmt.Errorf("decode media upload response: %s", string(data)))
	}
	return uploaded.ID, nil
}

func (c *Client) send(ctx context.Context, creds Credentials, to string, msg outbound) (*SendResponse, error) {
	if strings.TrimSpace(to) == "" {
		return nil, requestError(errors.New("recipient required"))
	}
	resolved, err := c.credentials(creds)
	if err != nil {
		return nil, err
	}
	msg.MessagingProduct = "whatsapp"
	msg.RecipientType = "individual"
	msg.To = to
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, requestError(fmt.Errorf("marshal %s message: %w", msg.Type, err))
	}
	data, err := c.invoke(ctx, resolved.Token, http.MethodPost, c.baseURL+"/"+resolved.PhoneNumberID+"/messages", body, "application/json")
	if err != nil {
		return nil, err
	}
	var resp SendResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, requestError(fmt.Errorf("decode send response: %w", err))
	}
	return &resp, nil
}

func (c *Client) invoke(ctx context.Context, token, method, fullURL string, body []byte, contentType string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, requestError(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", c.userAgent)
		if body != nil {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, noResponseError(ctx.Err())
			}
			lastErr = noResponseError(err)
			if !shouldRetry(0, err) || attempt == c.maxRetries {
				return nil, lastErr
			}
			c.logRetry(fullURL, attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, noResponseError(sleepErr)
			}
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, noResponseError(fmt.Errorf("read response: %w", readErr))
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		apiErr := decodeAPIError(resp.StatusCode, data)
		if attempt < c.maxRetries && apiErr.Retryable {
			lastErr = apiErr
			c.logRetry(fullURL, attempt, resp.StatusCode, apiErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, noResponseError(sleepErr)
			}
			continue
		}
		return nil, apiErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, noResponseError(errors.New("request failed without response"))
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(target string, attempt int, status int, err error) {
	c.logger.Warn("whatsapp retry",
		"url", target,
		"attempt", attempt+1,
		"status", status,
		"error", err,
	)
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(err, context.Canceled)
	}
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}
