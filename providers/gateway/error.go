package gateway

import (
	"encoding/json"
	"errors"

	"github.com/octanelabs/aisdk"
)

type wireError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// mapError converts a transport failure into the caller-facing taxonomy,
// preferring the message from the gateway error envelope and falling back
// to "<type> error" when only the type is present.
func mapError(err error) error {
	var te *aisdk.TransportError
	if !errors.As(err, &te) {
		return err
	}
	mapped := aisdk.MapTransportError(te)
	if te.Kind == aisdk.TransportHTTPStatus {
		var parsed wireError
		if json.Unmarshal([]byte(te.Body), &parsed) == nil {
			if parsed.Error.Message != "" {
				mapped.Message = parsed.Error.Message
			} else if parsed.Error.Type != "" {
				mapped.Message = parsed.Error.Type + " error"
			}
		}
	}
	return mapped
}
