package bedrock

import (
	"encoding/json"
	"errors"

	"github.com/octanelabs/aisdk"
)

type wireError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// mapError converts a transport failure into the caller-facing taxonomy,
// preferring the message from a Bedrock JSON error body when present.
func mapError(err error) error {
	var te *aisdk.TransportError
	if !errors.As(err, &te) {
		return err
	}
	mapped := aisdk.MapTransportError(te)
	if te.Kind == aisdk.TransportHTTPStatus {
		var parsed wireError
		if json.Unmarshal([]byte(te.Body), &parsed) == nil {
			if parsed.Message != "" {
				mapped.Message = parsed.Message
			} else if parsed.Type != "" {
				mapped.Message = parsed.Type
			}
		}
	}
	return mapped
}
