package bedrock

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/internal/jsonx"
)

// prepareRequest finalizes one Converse request: null fields are pruned so
// the signed payload matches the serialized body byte for byte, and the
// header set is either bearer-authorized or SigV4-signed.
func (m *LanguageModel) prepareRequest(ctx context.Context, url string, command map[string]any, headers map[string]string) (map[string]any, map[string]string, error) {
	// Round-trip through generic JSON so null pruning reaches every nesting
	// level and the transport's own pruning pass becomes a no-op.
	raw, err := json.Marshal(command)
	if err != nil {
		return nil, nil, aisdk.SerdeError(err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, nil, aisdk.SerdeError(err)
	}
	cleaned, _ := jsonx.WithoutNullFields(decoded).(map[string]any)
	if cleaned == nil {
		cleaned = map[string]any{}
	}

	final := make(map[string]string, len(headers)+4)
	for k, v := range headers {
		final[strings.ToLower(k)] = v
	}
	if _, ok := final["content-type"]; !ok {
		final["content-type"] = "application/json"
	}
	if _, ok := final["accept"]; !ok {
		final["accept"] = "application/json"
	}

	if m.auth.bearerToken != "" {
		final["authorization"] = "Bearer " + m.auth.bearerToken
		return cleaned, final, nil
	}

	payload, err := json.Marshal(cleaned)
	if err != nil {
		return nil, nil, aisdk.SerdeError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, aisdk.UpstreamError(400, "invalid Bedrock request URL: "+url, err)
	}
	for k, v := range final {
		req.Header.Set(k, v)
	}

	sum := sha256.Sum256(payload)
	creds := aws.Credentials{
		AccessKeyID:     m.auth.accessKeyID,
		SecretAccessKey: m.auth.secretAccessKey,
		SessionToken:    m.auth.sessionToken,
	}
	signer := v4.NewSigner()
	if err := signer.SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]),
		signingService, m.region, time.Now()); err != nil {
		return nil, nil, aisdk.UpstreamError(400, "failed to sign Amazon Bedrock request", err)
	}

	signed := make(map[string]string, len(req.Header))
	for k := range req.Header {
		signed[strings.ToLower(k)] = req.Header.Get(k)
	}
	return cleaned, signed, nil
}
