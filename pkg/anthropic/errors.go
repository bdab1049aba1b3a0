package anthropic

import (
	"encoding/json"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/sells-group/dealdesk/internal/remote"
)

const service = "anthropic"

// remoteError converts an SDK failure into a remote.Error carrying the
// HTTP status, the API's error message and the raw response body.
func remoteError(op string, err error) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return remote.Wrap(service, op, err)
	}
	body := strings.TrimSpace(apiErr.RawJSON())
	return &remote.Error{
		Service:    service,
		Op:         op,
		StatusCode: apiErr.StatusCode,
		Message:    apiMessage(body),
		Body:       body,
		Err:        err,
	}
}

// apiMessage renders error.type and error.message of an API error body.
func apiMessage(body string) string {
	var payload struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(body), &payload) != nil {
		return ""
	}
	if payload.Error.Type == "" || payload.Error.Message == "" {
		return payload.Error.Message
	}
	return payload.Error.Type + ": " + payload.Error.Message
}
