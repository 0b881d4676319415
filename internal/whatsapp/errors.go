package whatsapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Codes for failures that never reached the Graph API.
const (
	CodeNoResponse   = "NO_RESPONSE"
	CodeRequestError = "REQUEST_ERROR"
)

// SendError is the structured failure returned by every send. UserMessage is
// safe to show a doctor on the dashboard.
type SendError struct {
	Code        string          `json:"errorCode"`
	Subcode     int             `json:"subcode,omitempty"`
	Status      int             `json:"-"`
	Message     string          `json:"error"`
	UserMessage string          `json:"userMessage"`
	Retryable   bool            `json:"canRetry"`
	Details     json.RawMessage `json:"details,omitempty"`
	cause       error
}

func (e *SendError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("whatsapp: %s (code=%s status=%d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("whatsapp: %s (code=%s)", e.Message, e.Code)
}

func (e *SendError) Unwrap() error { return e.cause }

// AsSendError extracts a SendError from err.
func AsSendError(err error) (*SendError, bool) {
	var se *SendError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func noResponseError(err error) *SendError {
	return &SendError{
		Code:        CodeNoResponse,
		Message:     "No response from WhatsApp API: " + err.Error(),
		UserMessage: "WhatsApp API not responding. Please try again.",
		Retryable:   true,
		cause:       err,
	}
}

func requestError(err error) *SendError {
	return &SendError{
		Code:        CodeRequestError,
		Message:     err.Error(),
		UserMessage: "Failed to send message. Please try again.",
		Retryable:   true,
		cause:       err,
	}
}

var knownCodes = map[int]string{
	131047: "24-hour window expired. Patient must reply to the bot first before you can send messages.",
	131026: "24-hour window expired. Patient must reply to the bot first before you can send messages.",
	131031: "Invalid phone number format",
	131051: "Message undeliverable. Number may be invalid or blocked.",
	100:    "Invalid message format",
	190:    "WhatsApp access token expired. Please contact admin.",
}

func decodeAPIError(status int, body []byte) *SendError {
	var parsed struct {
		Error struct {
			Message   string `json:"message"`
			Type      string `json:"type"`
			Code      int    `json:"code"`
			Subcode   int    `json:"error_subcode"`
			FBTraceID string `json:"fbtrace_id"`
		} `json:"error"`
	}
	se := &SendError{
		Status:      status,
		UserMessage: "Failed to send WhatsApp message",
		Details:     json.RawMessage(body),
	}
	if !json.Valid(body) {
		se.Details = nil
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error.Code == 0 {
		se.Code = strconv.Itoa(status)
		se.Message = http.StatusText(status)
		se.Retryable = shouldRetry(status, nil)
		return se
	}
	se.Code = strconv.Itoa(parsed.Error.Code)
	se.Subcode = parsed.Error.Subcode
	se.Message = parsed.Error.Message
	if msg, ok := knownCodes[parsed.Error.Code]; ok {
		se.UserMessage = msg
		return se
	}
	se.Retryable = shouldRetry(status, nil)
	return se
}
