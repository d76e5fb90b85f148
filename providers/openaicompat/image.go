package openaicompat

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/registry"
	"github.com/octanelabs/aisdk/transport"
)

// ImageModel talks to /images/generations for pure prompts and
// /images/edits when input files are supplied.
type ImageModel struct {
	modelID string
	base    *base
}

func newImageModel(cfg registry.ModelConfig) (aisdk.ImageModel, error) {
	b, err := buildBase(cfg)
	if err != nil {
		return nil, err
	}
	return &ImageModel{modelID: cfg.ModelID, base: b}, nil
}

func (m *ImageModel) ProviderName() string         { return providerName }
func (m *ImageModel) ModelID() string              { return m.modelID }
func (m *ImageModel) SpecificationVersion() string { return aisdk.ImageModelSpecVersion }
func (m *ImageModel) MaxImagesPerCall() int        { return 10 }

var imageKnownKeys = map[string]struct{}{"user": {}}

func (m *ImageModel) imageOptions(opts aisdk.ProviderOptions) (string, map[string]any) {
	// Image defaults historically live under "openai" when the provider is
	// the generic one.
	scope := m.base.scope
	if scope == providerName {
		scope = "openai"
	}
	scopes := []string{providerName, scope}
	var user string
	found := false
	for _, s := range scopes {
		section, ok := opts[s]
		if !ok {
			continue
		}
		found = true
		if v, ok := section["user"].(string); ok {
			user = v
		}
	}
	if !found {
		return user, nil
	}
	return user, extrasFromLastScope(opts, scopes, imageKnownKeys)
}

func (m *ImageModel) warningsFor(options aisdk.ImageOptions) []aisdk.CallWarning {
	var warnings []aisdk.CallWarning
	if options.AspectRatio != "" {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("aspectRatio",
			"This model does not support aspect ratio. Use `size` instead."))
	}
	if options.Seed != nil {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("seed", ""))
	}
	return warnings
}

func (m *ImageModel) GenerateImages(ctx context.Context, options aisdk.ImageOptions) (*aisdk.ImageResponse, error) {
	if len(m.base.defaults) > 0 {
		options.ProviderOptions = aisdk.MergeProviderDefaults(options.ProviderOptions, m.base.defaults)
	}
	warnings := m.warningsFor(options)

	if len(options.Files) > 0 {
		return m.edit(ctx, options, warnings)
	}
	return m.generate(ctx, options, warnings)
}

func (m *ImageModel) generate(ctx context.Context, options aisdk.ImageOptions, warnings []aisdk.CallWarning) (*aisdk.ImageResponse, error) {
	user, extras := m.imageOptions(options.ProviderOptions)

	body := map[string]any{
		"model": m.modelID,
		"n":     options.N,
	}
	if options.Prompt != "" {
		body["prompt"] = options.Prompt
	}
	if options.Size != "" {
		body["size"] = options.Size
	}
	if user != "" {
		body["user"] = user
	}
	for k, v := range extras {
		body[k] = v
	}
	body["response_format"] = "b64_json"

	decoded, headers, err := m.base.http.PostJSON(ctx,
		m.base.requestURL("/images/generations"),
		m.base.callHeaders(options.Headers),
		body, m.base.transportCfg)
	if err != nil {
		return nil, mapError(err)
	}
	return m.handleResponse(decoded, headers, warnings, body)
}

func (m *ImageModel) edit(ctx context.Context, options aisdk.ImageOptions, warnings []aisdk.CallWarning) (*aisdk.ImageResponse, error) {
	user, extras := m.imageOptions(options.ProviderOptions)

	form := &transport.MultipartForm{}
	form.PushText("model", m.modelID)
	if options.Prompt != "" {
		form.PushText("prompt", options.Prompt)
	}
	form.PushText("n", strconv.Itoa(options.N))
	if options.Size != "" {
		form.PushText("size", options.Size)
	}
	if user != "" {
		form.PushText("user", user)
	}

	for i, file := range options.Files {
		data, filename, contentType, err := m.fileBytes(ctx, file, "image", i)
		if err != nil {
			return nil, err
		}
		form.PushBytes("image", data, filename, contentType)
	}
	if options.Mask != nil {
		data, filename, contentType, err := m.fileBytes(ctx, *options.Mask, "mask", -1)
		if err != nil {
			return nil, err
		}
		form.PushBytes("mask", data, filename, contentType)
	}

	for k, v := range extras {
		if s, ok := v.(string); ok {
			form.PushText(k, s)
		} else {
			form.PushText(k, fmt.Sprintf("%v", v))
		}
	}

	headers := m.base.callHeaders(options.Headers)
	delete(headers, "content-type")

	decoded, resHeaders, err := m.base.http.PostMultipart(ctx,
		m.base.requestURL("/images/edits"), headers, form, m.base.transportCfg)
	if err != nil {
		return nil, mapError(err)
	}
	return m.handleResponse(decoded, resHeaders, warnings, nil)
}

// fileBytes resolves an input image to raw bytes, fetching URL references
// through the transport.
func (m *ImageModel) fileBytes(ctx context.Context, file aisdk.ImageFile, baseName string, index int) ([]byte, string, string, error) {
	if file.Data.IsURL() {
		data, headers, err := m.base.http.GetBytes(ctx, file.Data.URL, nil, m.base.transportCfg)
		if err != nil {
			return nil, "", "", mapError(err)
		}
		return data, "", headers["content-type"], nil
	}

	var data []byte
	if file.Data.Base64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(file.Data.Base64)
		if err != nil {
			return nil, "", "", aisdk.UpstreamError(400, "invalid base64 image data", nil)
		}
		data = decoded
	} else {
		data = file.Data.Bytes
	}

	name := baseName
	if index >= 0 {
		name += "-" + strconv.Itoa(index)
	}
	if _, ext, ok := strings.Cut(file.MediaType, "/"); ok && ext != "" {
		name += "." + ext
	}
	return data, name, file.MediaType, nil
}

func (m *ImageModel) handleResponse(decoded any, headers map[string]string, warnings []aisdk.CallWarning, requestBody any) (*aisdk.ImageResponse, error) {
	doc, ok := decoded.(map[string]any)
	if !ok {
		return nil, aisdk.SerdeError(fmt.Errorf("unexpected image response shape"))
	}
	data, ok := doc["data"].([]any)
	if !ok {
		return nil, aisdk.SerdeError(fmt.Errorf("image response missing data"))
	}

	images := make([]string, 0, len(data))
	for _, item := range data {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if b64, ok := entry["b64_json"].(string); ok {
			images = append(images, b64)
		}
	}

	resp := &aisdk.ImageResponse{
		Images:   images,
		Warnings: warnings,
		Response: aisdk.ImageResponseMeta{
			Timestamp: time.Now().UTC(),
			ModelID:   m.modelID,
			Headers:   headers,
		},
		ResponseBody: decoded,
		RequestBody:  requestBody,
	}
	if usage, ok := doc["usage"].(map[string]any); ok {
		u := &aisdk.ImageUsage{}
		if v, ok := numberField(usage, "input_tokens"); ok {
			u.InputTokens = aisdk.Int64(v)
		}
		if v, ok := numberField(usage, "output_tokens"); ok {
			u.OutputTokens = aisdk.Int64(v)
		}
		if v, ok := numberField(usage, "total_tokens"); ok {
			u.TotalTokens = aisdk.Int64(v)
		}
		resp.Usage = u
	}
	return resp, nil
}
