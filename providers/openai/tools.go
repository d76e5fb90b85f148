package openai

import (
	"fmt"

	"github.com/octanelabs/aisdk"
)

// providerToolTypes maps provider-defined tool IDs to Responses wire types.
var providerToolTypes = map[string]string{
	"openai.file_search":        "file_search",
	"openai.local_shell":        "local_shell",
	"openai.shell":              "shell",
	"openai.apply_patch":        "apply_patch",
	"openai.web_search_preview": "web_search_preview",
	"openai.web_search":         "web_search",
	"openai.code_interpreter":   "code_interpreter",
	"openai.image_generation":   "image_generation",
	"openai.mcp":                "mcp",
}

var builtinToolNames = map[string]struct{}{
	"file_search":        {},
	"local_shell":        {},
	"shell":              {},
	"apply_patch":        {},
	"web_search_preview": {},
	"web_search":         {},
	"code_interpreter":   {},
	"image_generation":   {},
	"mcp":                {},
}

func isBuiltinToolName(name string) bool {
	_, ok := builtinToolNames[name]
	return ok
}

// toolNameMapping translates between the caller's tool names and the wire
// types of the built-in tools, in both directions.
type toolNameMapping struct {
	customToProvider map[string]string
	providerToCustom map[string]string
	// webSearchToolName is the caller's name for whichever web search
	// variant is configured; streamed web_search_call items do not say
	// which variant produced them.
	webSearchToolName string
}

func buildToolNameMapping(tools []aisdk.Tool) toolNameMapping {
	m := toolNameMapping{
		customToProvider: map[string]string{},
		providerToCustom: map[string]string{},
	}
	for _, tool := range tools {
		pt, ok := tool.(aisdk.ProviderDefinedTool)
		if !ok {
			continue
		}
		wire, ok := providerToolTypes[pt.ID]
		if !ok {
			continue
		}
		m.customToProvider[pt.Name] = wire
		if _, dup := m.providerToCustom[wire]; !dup {
			m.providerToCustom[wire] = pt.Name
		}
		if m.webSearchToolName == "" && (wire == "web_search" || wire == "web_search_preview") {
			m.webSearchToolName = pt.Name
		}
	}
	return m
}

func (m toolNameMapping) toProviderName(name string) string {
	if wire, ok := m.customToProvider[name]; ok {
		return wire
	}
	return name
}

func (m toolNameMapping) toCustomName(wire string) string {
	if wire == "web_search" || wire == "web_search_preview" {
		if m.webSearchToolName != "" {
			return m.webSearchToolName
		}
	}
	if name, ok := m.providerToCustom[wire]; ok {
		return name
	}
	return wire
}

type toolArgError struct {
	path string
	msg  string
}

func (e *toolArgError) at(prefix string) *toolArgError {
	if e == nil {
		return nil
	}
	if e.path == "" {
		e.path = prefix
	} else {
		e.path = prefix + "." + e.path
	}
	return e
}

func argErr(path, msg string) *toolArgError { return &toolArgError{path: path, msg: msg} }

func (e *toolArgError) Error() string {
	if e.path == "" {
		return e.msg
	}
	return e.path + " " + e.msg
}

func expectString(args map[string]any, key string) (string, bool, *toolArgError) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, argErr(key, "must be a string")
	}
	return s, true, nil
}

func expectBool(args map[string]any, key string) (bool, bool, *toolArgError) {
	v, ok := args[key]
	if !ok || v == nil {
		return false, false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, false, argErr(key, "must be a boolean")
	}
	return b, true, nil
}

func expectNumber(args map[string]any, key string) (float64, bool, *toolArgError) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return n, true, nil
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	}
	return 0, false, argErr(key, "must be a number")
}

func expectObject(args map[string]any, key string) (map[string]any, bool, *toolArgError) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false, argErr(key, "must be an object")
	}
	return m, true, nil
}

func expectStringArray(args map[string]any, key string) ([]string, bool, *toolArgError) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	out, ok := toStringSlice(v)
	if !ok {
		return nil, false, argErr(key, "must be an array of strings")
	}
	return out, true, nil
}

func toStringSlice(v any) ([]string, bool) {
	switch raw := v.(type) {
	case []string:
		return raw, true
	case []any:
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func expectEnum(args map[string]any, key string, allowed ...string) (string, bool, *toolArgError) {
	s, ok, err := expectString(args, key)
	if err != nil || !ok {
		return "", ok, err
	}
	for _, a := range allowed {
		if s == a {
			return s, true, nil
		}
	}
	return "", false, argErr(key, "has an invalid value")
}

func expectIntRange(args map[string]any, key string, min, max int) (int, bool, *toolArgError) {
	n, ok, err := expectNumber(args, key)
	if err != nil || !ok {
		return 0, ok, err
	}
	v := int(n)
	if float64(v) != n || v < min || v > max {
		return 0, false, argErr(key, fmt.Sprintf("must be an integer between %d and %d", min, max))
	}
	return v, true, nil
}

func ensureKnownKeys(args map[string]any, known ...string) *toolArgError {
	allowed := map[string]struct{}{}
	for _, k := range known {
		allowed[k] = struct{}{}
	}
	for k := range args {
		if _, ok := allowed[k]; !ok {
			return argErr(k, "is not a supported argument")
		}
	}
	return nil
}

var comparisonFilterOps = map[string]struct{}{
	"eq": {}, "ne": {}, "gt": {}, "gte": {}, "lt": {}, "lte": {}, "in": {}, "nin": {},
}

// validateFileSearchFilter checks the recursive filter grammar: compound
// and/or nodes over comparison leaves.
func validateFileSearchFilter(path string, v any) *toolArgError {
	node, ok := v.(map[string]any)
	if !ok {
		return argErr(path, "must be an object")
	}
	typ, ok := node["type"].(string)
	if !ok {
		return argErr(path+".type", "must be a string")
	}
	switch {
	case typ == "and" || typ == "or":
		children, ok := node["filters"].([]any)
		if !ok {
			return argErr(path+".filters", "must be an array")
		}
		for i, child := range children {
			if err := validateFileSearchFilter(fmt.Sprintf("%s.filters[%d]", path, i), child); err != nil {
				return err
			}
		}
		return nil
	default:
		if _, ok := comparisonFilterOps[typ]; !ok {
			return argErr(path+".type", "has an invalid value")
		}
		if _, ok := node["key"].(string); !ok {
			return argErr(path+".key", "must be a string")
		}
		switch value := node["value"].(type) {
		case string, float64, bool:
			return nil
		case []any:
			if _, ok := toStringSlice(value); ok {
				return nil
			}
		}
		return argErr(path+".value", "must be a string, number, boolean or string array")
	}
}

func validateUserLocation(args map[string]any) *toolArgError {
	loc, ok, err := expectObject(args, "userLocation")
	if err != nil || !ok {
		return err
	}
	if typ, ok := loc["type"].(string); !ok || typ != "approximate" {
		return argErr("userLocation.type", "must be \"approximate\"")
	}
	for _, key := range []string{"country", "city", "region", "timezone"} {
		if _, _, err := expectString(loc, key); err != nil {
			return err.at("userLocation")
		}
	}
	return nil
}

func validateProviderToolArgs(wire string, args map[string]any) *toolArgError {
	if args == nil {
		args = map[string]any{}
	}
	switch wire {
	case "file_search":
		ids, ok, err := expectStringArray(args, "vectorStoreIds")
		if err != nil {
			return err
		}
		if !ok || ids == nil {
			return argErr("vectorStoreIds", "must be an array of strings")
		}
		if _, _, err := expectNumber(args, "maxNumResults"); err != nil {
			return err
		}
		if ranking, ok, err := expectObject(args, "ranking"); err != nil {
			return err
		} else if ok {
			if _, _, err := expectString(ranking, "ranker"); err != nil {
				return err.at("ranking")
			}
			if _, _, err := expectNumber(ranking, "scoreThreshold"); err != nil {
				return err.at("ranking")
			}
		}
		if filters, ok := args["filters"]; ok && filters != nil {
			return validateFileSearchFilter("filters", filters)
		}
		return nil

	case "local_shell", "shell", "apply_patch":
		return nil

	case "web_search_preview":
		if _, _, err := expectEnum(args, "searchContextSize", "low", "medium", "high"); err != nil {
			return err
		}
		return validateUserLocation(args)

	case "web_search":
		if _, _, err := expectEnum(args, "searchContextSize", "low", "medium", "high"); err != nil {
			return err
		}
		if _, _, err := expectBool(args, "externalWebAccess"); err != nil {
			return err
		}
		if filters, ok, err := expectObject(args, "filters"); err != nil {
			return err
		} else if ok {
			if _, _, err := expectStringArray(filters, "allowedDomains"); err != nil {
				return err.at("filters")
			}
		}
		return validateUserLocation(args)

	case "code_interpreter":
		switch container := args["container"].(type) {
		case nil, string:
			return nil
		case map[string]any:
			if _, _, err := expectStringArray(container, "fileIds"); err != nil {
				return err.at("container")
			}
			return nil
		default:
			return argErr("container", "must be a string or an object")
		}

	case "image_generation":
		if err := ensureKnownKeys(args,
			"background", "inputFidelity", "inputImageMask", "model", "moderation",
			"outputCompression", "outputFormat", "partialImages", "quality", "size"); err != nil {
			return err
		}
		if _, _, err := expectEnum(args, "background", "auto", "opaque", "transparent"); err != nil {
			return err
		}
		if _, _, err := expectEnum(args, "inputFidelity", "low", "high"); err != nil {
			return err
		}
		if _, _, err := expectString(args, "model"); err != nil {
			return err
		}
		if _, _, err := expectEnum(args, "moderation", "auto"); err != nil {
			return err
		}
		if _, _, err := expectIntRange(args, "outputCompression", 0, 100); err != nil {
			return err
		}
		if _, _, err := expectEnum(args, "outputFormat", "png", "jpeg", "webp"); err != nil {
			return err
		}
		if _, _, err := expectIntRange(args, "partialImages", 0, 3); err != nil {
			return err
		}
		if _, _, err := expectEnum(args, "quality", "auto", "low", "medium", "high"); err != nil {
			return err
		}
		if _, _, err := expectEnum(args, "size", "1024x1024", "1024x1536", "1536x1024", "auto"); err != nil {
			return err
		}
		if mask, ok, err := expectObject(args, "inputImageMask"); err != nil {
			return err
		} else if ok {
			if _, _, err := expectString(mask, "fileId"); err != nil {
				return err.at("inputImageMask")
			}
			if _, _, err := expectString(mask, "imageUrl"); err != nil {
				return err.at("inputImageMask")
			}
		}
		return nil

	case "mcp":
		label, ok, err := expectString(args, "serverLabel")
		if err != nil {
			return err
		}
		if !ok || label == "" {
			return argErr("serverLabel", "must be a string")
		}
		serverURL, hasURL, err := expectString(args, "serverUrl")
		if err != nil {
			return err
		}
		connectorID, hasConnector, err := expectString(args, "connectorId")
		if err != nil {
			return err
		}
		if (!hasURL || serverURL == "") && (!hasConnector || connectorID == "") {
			return argErr("", "requires serverUrl or connectorId")
		}
		if _, _, err := expectString(args, "authorization"); err != nil {
			return err
		}
		if _, _, err := expectString(args, "serverDescription"); err != nil {
			return err
		}
		if headers, ok, err := expectObject(args, "headers"); err != nil {
			return err
		} else if ok {
			for k, v := range headers {
				if _, ok := v.(string); !ok {
					return argErr("headers."+k, "must be a string")
				}
			}
		}
		switch allowed := args["allowedTools"].(type) {
		case nil:
		case []any, []string:
			if _, ok := toStringSlice(allowed); !ok {
				return argErr("allowedTools", "must be an array of strings")
			}
		case map[string]any:
			if _, _, err := expectBool(allowed, "readOnly"); err != nil {
				return err.at("allowedTools")
			}
			if _, _, err := expectStringArray(allowed, "toolNames"); err != nil {
				return err.at("allowedTools")
			}
		default:
			return argErr("allowedTools", "must be an array of strings or an object")
		}
		switch approval := args["requireApproval"].(type) {
		case nil:
		case string:
			if approval != "always" && approval != "never" {
				return argErr("requireApproval", "has an invalid value")
			}
		case map[string]any:
			if never, ok, err := expectObject(approval, "never"); err != nil {
				return err.at("requireApproval")
			} else if ok {
				if _, _, err := expectStringArray(never, "toolNames"); err != nil {
					return err.at("requireApproval.never")
				}
			}
		default:
			return argErr("requireApproval", "must be a string or an object")
		}
		return nil
	}
	return nil
}

// buildProviderTool renders one provider-defined tool to its wire shape,
// validating the caller-facing camelCase args first. An unknown tool ID
// returns (nil, nil) so the caller can warn instead of failing.
func buildProviderTool(t aisdk.ProviderDefinedTool) (map[string]any, error) {
	wire, ok := providerToolTypes[t.ID]
	if !ok {
		return nil, nil
	}
	if err := validateProviderToolArgs(wire, t.Args); err != nil {
		return nil, aisdk.InvalidArgument(
			fmt.Sprintf("provider tool %s (%s): %s", t.Name, t.ID, err.Error()))
	}

	entry := map[string]any{"type": wire}
	args := t.Args

	setIf := func(wireKey, argKey string) {
		if v, ok := args[argKey]; ok && v != nil {
			entry[wireKey] = v
		}
	}

	switch wire {
	case "file_search":
		entry["vector_store_ids"] = args["vectorStoreIds"]
		setIf("max_num_results", "maxNumResults")
		if ranking, ok := args["ranking"].(map[string]any); ok {
			opts := map[string]any{}
			if v, ok := ranking["ranker"]; ok {
				opts["ranker"] = v
			}
			if v, ok := ranking["scoreThreshold"]; ok {
				opts["score_threshold"] = v
			}
			entry["ranking_options"] = opts
		}
		setIf("filters", "filters")

	case "local_shell", "shell", "apply_patch":
		// Bare type entries.

	case "web_search_preview":
		setIf("search_context_size", "searchContextSize")
		if loc, ok := args["userLocation"]; ok && loc != nil {
			entry["user_location"] = loc
		}

	case "web_search":
		setIf("search_context_size", "searchContextSize")
		setIf("external_web_access", "externalWebAccess")
		if filters, ok := args["filters"].(map[string]any); ok {
			if domains, ok := filters["allowedDomains"]; ok && domains != nil {
				entry["filters"] = map[string]any{"allowed_domains": domains}
			}
		}
		if loc, ok := args["userLocation"]; ok && loc != nil {
			entry["user_location"] = loc
		}

	case "code_interpreter":
		switch container := args["container"].(type) {
		case string:
			entry["container"] = container
		case map[string]any:
			inner := map[string]any{"type": "auto"}
			if ids, ok := container["fileIds"]; ok && ids != nil {
				inner["file_ids"] = ids
			}
			entry["container"] = inner
		default:
			entry["container"] = map[string]any{"type": "auto"}
		}

	case "image_generation":
		setIf("background", "background")
		setIf("input_fidelity", "inputFidelity")
		setIf("model", "model")
		setIf("moderation", "moderation")
		setIf("output_compression", "outputCompression")
		setIf("output_format", "outputFormat")
		setIf("partial_images", "partialImages")
		setIf("quality", "quality")
		setIf("size", "size")
		if mask, ok := args["inputImageMask"].(map[string]any); ok {
			inner := map[string]any{}
			if v, ok := mask["fileId"]; ok {
				inner["file_id"] = v
			}
			if v, ok := mask["imageUrl"]; ok {
				inner["image_url"] = v
			}
			entry["input_image_mask"] = inner
		}

	case "mcp":
		entry["server_label"] = args["serverLabel"]
		setIf("server_url", "serverUrl")
		setIf("connector_id", "connectorId")
		setIf("authorization", "authorization")
		setIf("server_description", "serverDescription")
		setIf("headers", "headers")
		switch allowed := args["allowedTools"].(type) {
		case []any, []string:
			entry["allowed_tools"] = allowed
		case map[string]any:
			inner := map[string]any{}
			if v, ok := allowed["readOnly"]; ok {
				inner["read_only"] = v
			}
			if v, ok := allowed["toolNames"]; ok {
				inner["tool_names"] = v
			}
			entry["allowed_tools"] = inner
		}
		switch approval := args["requireApproval"].(type) {
		case string:
			entry["require_approval"] = approval
		case map[string]any:
			if never, ok := approval["never"].(map[string]any); ok {
				inner := map[string]any{}
				if v, ok := never["toolNames"]; ok {
					inner["tool_names"] = v
				}
				entry["require_approval"] = map[string]any{"never": inner}
			}
		default:
			entry["require_approval"] = "never"
		}
	}

	return entry, nil
}
