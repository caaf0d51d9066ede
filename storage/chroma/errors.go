package chroma

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/poiesic/docpipe/storage"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chroma: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// Is maps status codes onto the storage sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case storage.ErrRemote:
		return true
	case storage.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case storage.ErrCollectionExists:
		return e.StatusCode == http.StatusConflict && strings.Contains(strings.ToLower(e.Message), "collection")
	case storage.ErrDuplicateKey:
		return e.StatusCode == http.StatusConflict && !strings.Contains(strings.ToLower(e.Message), "collection")
	case storage.ErrInvalidQuery:
		return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
	}
	return false
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			msg = payload.Message
		} else if payload.Error != "" {
			msg = payload.Error
		}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
