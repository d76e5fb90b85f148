package google

// convertJSONSchemaToOpenAPI rewrites a JSON Schema into the OpenAPI 3.0
// subset the Gemini API accepts. Nullability moves from type arrays and
// anyOf-with-null into the nullable flag, const becomes a single-value enum,
// and an unconstrained object schema collapses to nil so the field can be
// omitted entirely.
func convertJSONSchemaToOpenAPI(schema any) any {
	obj, ok := schema.(map[string]any)
	if !ok {
		return schema
	}
	if isEmptyObjectSchema(obj) {
		return nil
	}

	out := map[string]any{}
	for _, key := range []string{"description", "required", "format", "minLength"} {
		if v, ok := obj[key]; ok {
			out[key] = v
		}
	}
	if v, ok := obj["enum"]; ok {
		out["enum"] = v
	}
	if v, ok := obj["const"]; ok {
		out["enum"] = []any{v}
	}

	switch t := obj["type"].(type) {
	case string:
		if t == "null" {
			out["type"] = "null"
		} else {
			out["type"] = t
		}
	case []any:
		var nonNull []string
		nullable := false
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if s == "null" {
				nullable = true
			} else {
				nonNull = append(nonNull, s)
			}
		}
		if len(nonNull) > 0 {
			out["type"] = nonNull[0]
		}
		if nullable {
			out["nullable"] = true
		}
	}

	if props, ok := obj["properties"].(map[string]any); ok {
		converted := map[string]any{}
		for name, sub := range props {
			if c := convertJSONSchemaToOpenAPI(sub); c != nil {
				converted[name] = c
			}
		}
		out["properties"] = converted
	}

	if items, ok := obj["items"]; ok {
		if list, ok := items.([]any); ok {
			converted := make([]any, 0, len(list))
			for _, sub := range list {
				converted = append(converted, convertJSONSchemaToOpenAPI(sub))
			}
			out["items"] = converted
		} else {
			out["items"] = convertJSONSchemaToOpenAPI(items)
		}
	}

	for _, key := range []string{"allOf", "oneOf"} {
		if list, ok := obj[key].([]any); ok {
			converted := make([]any, 0, len(list))
			for _, sub := range list {
				converted = append(converted, convertJSONSchemaToOpenAPI(sub))
			}
			out[key] = converted
		}
	}

	if list, ok := obj["anyOf"].([]any); ok {
		var nonNull []any
		nullable := false
		for _, sub := range list {
			if m, ok := sub.(map[string]any); ok && m["type"] == "null" {
				nullable = true
				continue
			}
			nonNull = append(nonNull, convertJSONSchemaToOpenAPI(sub))
		}
		if nullable && len(nonNull) == 1 {
			if flat, ok := nonNull[0].(map[string]any); ok {
				for k, v := range flat {
					out[k] = v
				}
			}
			out["nullable"] = true
		} else {
			out["anyOf"] = nonNull
			if nullable {
				out["nullable"] = true
			}
		}
	}

	return out
}

// isEmptyObjectSchema reports an object schema with no properties and no
// additionalProperties constraint. Gemini rejects empty parameter objects.
func isEmptyObjectSchema(obj map[string]any) bool {
	if obj["type"] != "object" {
		return false
	}
	if _, ok := obj["additionalProperties"]; ok {
		return false
	}
	props, ok := obj["properties"]
	if !ok {
		return true
	}
	m, ok := props.(map[string]any)
	return ok && len(m) == 0
}
