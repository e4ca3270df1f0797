package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GatewayError is a failed gateway call: transport failure, non-2xx reply or
// an unreadable response. Body carries the gateway's error payload when present.
type GatewayError struct {
	Op         string
	StatusCode int
	Messages   []string
	Body       []byte
	Err        error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	b.WriteString("gateway " + e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if len(e.Messages) > 0 {
		b.WriteString(": " + strings.Join(e.Messages, "; "))
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the same call may succeed.
func (e *GatewayError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// errorMessages pulls human readable messages out of an error payload.
// The gateway uses either {"message":[...]} or {"error":{"message":"..."}}.
func errorMessages(body []byte) []string {
	var withList struct {
		Message []string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &withList); err != nil {
		return nil
	}
	if len(withList.Message) > 0 {
		return withList.Message
	}
	if withList.Error.Message != "" {
		return []string{withList.Error.Message}
	}
	return nil
}
