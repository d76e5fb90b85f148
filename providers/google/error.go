package google

import (
	"encoding/json"
	"errors"

	"github.com/octanelabs/aisdk"
)

type wireError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// mapError converts a transport failure into the caller-facing taxonomy,
// preferring the message from a Google JSON error body when present.
func mapError(err error) error {
	var te *aisdk.TransportError
	if !errors.As(err, &te) {
		return err
	}
	mapped := aisdk.MapTransportError(te)
	if te.Kind == aisdk.TransportHTTPStatus && mapped.Kind == aisdk.ErrUpstream {
		var parsed wireError
		if json.Unmarshal([]byte(te.Body), &parsed) == nil && parsed.Error.Message != "" {
			mapped.Message = parsed.Error.Message
		}
	}
	return mapped
}
