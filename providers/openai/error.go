package openai

import (
	"encoding/json"
	"errors"

	"github.com/octanelabs/aisdk"
)

type wireError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// wireErrorMessage renders the error object a 200 response can still carry
// in its "error" field.
func wireErrorMessage(v any) string {
	obj, ok := v.(map[string]any)
	if !ok {
		return "request failed"
	}
	if msg := stringField(obj, "message"); msg != "" {
		return msg
	}
	return "request failed"
}

// mapError converts a transport failure into the caller-facing taxonomy,
// preferring the message from an OpenAI JSON error body when present.
func mapError(err error) error {
	var te *aisdk.TransportError
	if !errors.As(err, &te) {
		return err
	}
	mapped := aisdk.MapTransportError(te)
	if te.Kind == aisdk.TransportHTTPStatus &&
		(mapped.Kind == aisdk.ErrUpstream || mapped.Kind == aisdk.ErrUnauthorized) {
		var parsed wireError
		if json.Unmarshal([]byte(te.Body), &parsed) == nil && parsed.Error.Message != "" {
			mapped.Message = parsed.Error.Message
		}
	}
	return mapped
}
