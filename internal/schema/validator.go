// Package schema validates inbound request bodies before they reach the
// pipeline.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"speech-pii-redaction-service/internal/models"
	"speech-pii-redaction-service/internal/observability/logging"
)

// Validation messages returned to HTTP callers.
const (
	MsgNoBody       = "No s3 object keys found in event or body"
	MsgMissingKeys  = "No s3 object keys found in body"
	MsgKeysNotArray = "Expected s3 object keys to be an array"
	MsgKeysEmpty    = "Array of s3 object keys is empty"
	MsgKeyNotString = "Expected every s3 object key to be a non-empty string"
	MsgLanguageType = "Expected languageCode to be a string"
)

// Error is a validation failure with a caller-facing message.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Unwrap lets errors.Is match models.ErrValidation.
func (e *Error) Unwrap() error { return models.ErrValidation }

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// TranscribeRequest checks a POST /transcribe body field by field so the
// caller learns exactly which rule failed. Nothing is dispatched on error.
func (v *Validator) TranscribeRequest(body []byte) (models.TranscribeRequest, error) {
	var req models.TranscribeRequest

	if len(bytes.TrimSpace(body)) == 0 {
		return req, &Error{Message: MsgNoBody}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return req, &Error{Message: fmt.Sprintf("Request body is not a JSON object: %v", err)}
	}

	keysRaw, ok := raw["s3ObjectKeys"]
	if !ok || bytes.Equal(bytes.TrimSpace(keysRaw), []byte("null")) {
		return req, &Error{Message: MsgMissingKeys}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(keysRaw, &elems); err != nil {
		return req, &Error{Message: MsgKeysNotArray}
	}
	if len(elems) == 0 {
		return req, &Error{Message: MsgKeysEmpty}
	}

	req.S3ObjectKeys = make([]string, 0, len(elems))
	for _, e := range elems {
		var key string
		if err := json.Unmarshal(e, &key); err != nil || strings.TrimSpace(key) == "" {
			return models.TranscribeRequest{}, &Error{Message: MsgKeyNotString}
		}
		req.S3ObjectKeys = append(req.S3ObjectKeys, key)
	}

	if langRaw, ok := raw["languageCode"]; ok && !bytes.Equal(bytes.TrimSpace(langRaw), []byte("null")) {
		if err := json.Unmarshal(langRaw, &req.LanguageCode); err != nil {
			return models.TranscribeRequest{}, &Error{Message: MsgLanguageType}
		}
	}

	logger := logging.WithComponent("schema")
	logger.Debug().
		Int("keys", len(req.S3ObjectKeys)).
		Str("languageCode", req.LanguageCode).
		Msg("Transcribe request validated")
	return req, nil
}
