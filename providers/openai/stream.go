package openai

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/eventmapper"
)

type summaryPartState int

const (
	summaryActive summaryPartState = iota
	// summaryCanConclude marks a finished summary part whose end is held
	// back until the next part starts or the reasoning item closes; without
	// store, encrypted content only arrives with the item-level done.
	summaryCanConclude
	summaryConcluded
)

type reasoningItemState struct {
	encryptedContent any
	parts            map[int]summaryPartState
}

type applyPatchState struct {
	callID     string
	hasDiff    bool
	endEmitted bool
}

type codeInterpreterState struct {
	callID      string
	containerID string
	code        string
}

// streamExtras is the provider scratch state threaded through the event
// mapper hooks for one streamed response.
type streamExtras struct {
	finishHint       string
	responseID       string
	serviceTier      string
	sawFailed        bool
	hasFunctionCalls bool

	logprobs          []any
	annotations       map[string][]any
	openTexts         map[string]bool
	reasoning         map[string]*reasoningItemState
	toolItemIDs       map[string]string
	approvals         map[string]string
	applyPatch        map[int]*applyPatchState
	codeInterpreter   map[int]*codeInterpreterState
	emittedToolCalls  map[string]bool
	openComputerCalls map[string]bool
}

func newStreamExtras() *streamExtras {
	return &streamExtras{
		annotations:       map[string][]any{},
		openTexts:         map[string]bool{},
		reasoning:         map[string]*reasoningItemState{},
		toolItemIDs:       map[string]string{},
		approvals:         map[string]string{},
		applyPatch:        map[int]*applyPatchState{},
		codeInterpreter:   map[int]*codeInterpreterState{},
		emittedToolCalls:  map[string]bool{},
		openComputerCalls: map[string]bool{},
	}
}

func itemMeta(itemID string) aisdk.ProviderMetadata {
	return aisdk.ProviderMetadata{"openai": {"itemId": itemID}}
}

func reasoningMeta(itemID string, encrypted any) aisdk.ProviderMetadata {
	inner := map[string]any{"itemId": itemID}
	if encrypted != nil {
		inner["reasoningEncryptedContent"] = encrypted
	}
	return aisdk.ProviderMetadata{"openai": inner}
}

func reasoningPartID(itemID string, idx int) string {
	return fmt.Sprintf("%s:%d", itemID, idx)
}

// escapeJSONDelta renders an input fragment as the inside of a JSON string
// literal, passing clean fragments through untouched.
func escapeJSONDelta(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if c := s[i]; c < 0x20 || c == '"' || c == '\\' {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	b, err := json.Marshal(s)
	if err != nil {
		return s
	}
	return string(b[1 : len(b)-1])
}

func mapFinishReason(hint string, hasFunctionCalls bool) aisdk.FinishReason {
	switch hint {
	case "":
		if hasFunctionCalls {
			return aisdk.FinishToolCalls
		}
		return aisdk.FinishStop
	case "max_output_tokens":
		return aisdk.FinishLength
	case "content_filter":
		return aisdk.FinishContentFilter
	default:
		if hasFunctionCalls {
			return aisdk.FinishToolCalls
		}
		return aisdk.FinishOther
	}
}

func buildStreamConfig(bctx buildContext, approvals map[string]string, includeRaw bool) eventmapper.Config {
	x := newStreamExtras()
	for id, callID := range approvals {
		x.approvals[id] = callID
	}
	return eventmapper.Config{
		Warnings:             bctx.warnings,
		DefaultTextID:        "text-1",
		FinishReasonFallback: aisdk.FinishStop,
		IncludeRaw:           includeRaw,
		InitialExtra:         x,
		Hooks: eventmapper.Hooks{
			ToolEndMetadata: func(id string) aisdk.ProviderMetadata {
				if itemID, ok := x.toolItemIDs[id]; ok {
					return itemMeta(itemID)
				}
				return nil
			},
			Data: func(state *eventmapper.State, key string, value any) []aisdk.StreamPart {
				return x.handleData(state, key, value, bctx)
			},
			Finish: func(*eventmapper.State) (aisdk.FinishReason, aisdk.ProviderMetadata) {
				reason := mapFinishReason(x.finishHint, x.hasFunctionCalls)
				if x.sawFailed {
					reason = aisdk.FinishOther
				}
				inner := map[string]any{}
				if x.responseID != "" {
					inner["responseId"] = x.responseID
				}
				if !x.sawFailed && x.serviceTier != "" {
					inner["serviceTier"] = x.serviceTier
				}
				if len(x.logprobs) > 0 {
					inner["logprobs"] = x.logprobs
				}
				return reason, aisdk.ProviderMetadata{"openai": inner}
			},
		},
	}
}

func (x *streamExtras) handleData(state *eventmapper.State, key string, value any, bctx buildContext) []aisdk.StreamPart {
	if strings.HasPrefix(key, "openai.tool_item_id.") {
		callID := strings.TrimPrefix(key, "openai.tool_item_id.")
		if v, ok := value.(map[string]any); ok {
			if itemID := stringField(v, "item_id"); itemID != "" {
				x.toolItemIDs[callID] = itemID
			}
		}
		return nil
	}

	v, _ := value.(map[string]any)

	switch key {
	case "usage":
		if r, ok := reasoningTokens(v); ok {
			state.Usage.ReasoningTokens = aisdk.Int64(r)
		}
		return nil

	case "openai.response_metadata":
		x.responseID = stringField(v, "id")
		meta := aisdk.ResponseMetadata{
			ID:      x.responseID,
			ModelID: stringField(v, "model"),
		}
		if ms, ok := v["created_at_ms"].(int64); ok {
			meta.Timestamp = time.UnixMilli(ms).UTC()
		}
		return []aisdk.StreamPart{meta}

	case "openai.message_added":
		itemID := stringField(v, "item_id")
		if x.openTexts[itemID] {
			return nil
		}
		x.openTexts[itemID] = true
		return []aisdk.StreamPart{aisdk.TextStart{ID: itemID, ProviderMetadata: itemMeta(itemID)}}

	case "openai.text_delta":
		itemID := stringField(v, "item_id")
		var parts []aisdk.StreamPart
		if !x.openTexts[itemID] {
			x.openTexts[itemID] = true
			parts = append(parts, aisdk.TextStart{ID: itemID, ProviderMetadata: itemMeta(itemID)})
		}
		if bctx.logprobs > 0 {
			if entries, ok := v["logprobs"].([]any); ok {
				x.logprobs = append(x.logprobs, entries...)
			}
		}
		return append(parts, aisdk.TextDelta{ID: itemID, Delta: stringField(v, "delta")})

	case "openai.text_annotation":
		return x.handleAnnotation(v)

	case "openai.message_done":
		itemID := stringField(v, "item_id")
		if !x.openTexts[itemID] {
			return nil
		}
		delete(x.openTexts, itemID)
		meta := itemMeta(itemID)
		if anns := x.annotations[itemID]; len(anns) > 0 {
			meta["openai"]["annotations"] = anns
		}
		return []aisdk.StreamPart{aisdk.TextEnd{ID: itemID, ProviderMetadata: meta}}

	case "openai.error":
		x.finishHint = "error"
		return []aisdk.StreamPart{aisdk.ErrorPart{Error: value}}

	case "openai.reasoning_added":
		itemID := stringField(v, "item_id")
		st := &reasoningItemState{
			encryptedContent: v["encrypted_content"],
			parts:            map[int]summaryPartState{0: summaryActive},
		}
		x.reasoning[itemID] = st
		return []aisdk.StreamPart{aisdk.ReasoningStart{
			ID:               reasoningPartID(itemID, 0),
			ProviderMetadata: reasoningMeta(itemID, st.encryptedContent),
		}}

	case "openai.reasoning_summary_added":
		itemID := stringField(v, "item_id")
		idx := intValue(v["summary_index"])
		st := x.reasoningState(itemID)
		if idx == 0 {
			return nil
		}
		var parts []aisdk.StreamPart
		for _, prior := range sortedPartIndexes(st) {
			if st.parts[prior] == summaryCanConclude {
				st.parts[prior] = summaryConcluded
				parts = append(parts, aisdk.ReasoningEnd{
					ID:               reasoningPartID(itemID, prior),
					ProviderMetadata: itemMeta(itemID),
				})
			}
		}
		st.parts[idx] = summaryActive
		return append(parts, aisdk.ReasoningStart{
			ID:               reasoningPartID(itemID, idx),
			ProviderMetadata: reasoningMeta(itemID, st.encryptedContent),
		})

	case "openai.reasoning_summary_delta":
		itemID := stringField(v, "item_id")
		idx := intValue(v["summary_index"])
		x.reasoningState(itemID).parts[idx] = summaryActive
		return []aisdk.StreamPart{aisdk.ReasoningDelta{
			ID:               reasoningPartID(itemID, idx),
			Delta:            stringField(v, "delta"),
			ProviderMetadata: itemMeta(itemID),
		}}

	case "openai.reasoning_summary_done":
		itemID := stringField(v, "item_id")
		idx := intValue(v["summary_index"])
		st := x.reasoningState(itemID)
		if !bctx.store {
			st.parts[idx] = summaryCanConclude
			return nil
		}
		st.parts[idx] = summaryConcluded
		return []aisdk.StreamPart{aisdk.ReasoningEnd{
			ID:               reasoningPartID(itemID, idx),
			ProviderMetadata: itemMeta(itemID),
		}}

	case "openai.reasoning_done":
		itemID := stringField(v, "item_id")
		st := x.reasoningState(itemID)
		if enc := v["encrypted_content"]; enc != nil {
			st.encryptedContent = enc
		}
		var parts []aisdk.StreamPart
		for _, idx := range sortedPartIndexes(st) {
			if st.parts[idx] == summaryConcluded {
				continue
			}
			st.parts[idx] = summaryConcluded
			parts = append(parts, aisdk.ReasoningEnd{
				ID:               reasoningPartID(itemID, idx),
				ProviderMetadata: reasoningMeta(itemID, st.encryptedContent),
			})
		}
		return parts

	case "openai.web_search_call.added":
		id := stringField(v, "tool_call_id")
		name := bctx.mapping.toCustomName("web_search")
		x.emittedToolCalls[id] = true
		return []aisdk.StreamPart{
			aisdk.ToolInputStart{ID: id, ToolName: name, ProviderExecuted: true},
			aisdk.ToolInputEnd{ID: id, ProviderExecuted: true},
			aisdk.ToolCall{ToolCallID: id, ToolName: name, Input: "{}", ProviderExecuted: true},
		}

	case "openai.file_search_call.added":
		return x.bareProviderToolCall(v, bctx.mapping.toCustomName("file_search"))

	case "openai.image_generation_call.added":
		return x.bareProviderToolCall(v, bctx.mapping.toCustomName("image_generation"))

	case "openai.image_generation_call.partial":
		id := stringField(v, "tool_call_id")
		return []aisdk.StreamPart{aisdk.ToolResult{
			ToolCallID:  id,
			ToolName:    bctx.mapping.toCustomName("image_generation"),
			Result:      map[string]any{"result": stringField(v, "partial_image_b64")},
			Preliminary: true,
		}}

	case "openai.computer_call.added":
		id := stringField(v, "tool_call_id")
		x.openComputerCalls[id] = true
		return []aisdk.StreamPart{aisdk.ToolInputStart{
			ID:               id,
			ToolName:         bctx.mapping.toCustomName("computer_use"),
			ProviderExecuted: true,
		}}

	case "openai.code_interpreter_call.added":
		idx := intValue(v["output_index"])
		id := stringField(v, "tool_call_id")
		containerID := stringField(v, "container_id")
		x.codeInterpreter[idx] = &codeInterpreterState{callID: id, containerID: containerID}
		return []aisdk.StreamPart{
			aisdk.ToolInputStart{
				ID:               id,
				ToolName:         bctx.mapping.toCustomName("code_interpreter"),
				ProviderExecuted: true,
			},
			aisdk.ToolInputDelta{
				ID:    id,
				Delta: `{"containerId":` + jsonString(containerID) + `,"code":"`,
			},
		}

	case "openai.code_interpreter_call.code_delta":
		ci := x.codeInterpreter[intValue(v["output_index"])]
		if ci == nil {
			return nil
		}
		delta := stringField(v, "delta")
		ci.code += delta
		return []aisdk.StreamPart{aisdk.ToolInputDelta{ID: ci.callID, Delta: escapeJSONDelta(delta)}}

	case "openai.code_interpreter_call.code_done":
		ci := x.codeInterpreter[intValue(v["output_index"])]
		if ci == nil {
			return nil
		}
		x.emittedToolCalls[ci.callID] = true
		return []aisdk.StreamPart{
			aisdk.ToolInputDelta{ID: ci.callID, Delta: `"}`},
			aisdk.ToolInputEnd{ID: ci.callID, ProviderExecuted: true},
			aisdk.ToolCall{
				ToolCallID: ci.callID,
				ToolName:   bctx.mapping.toCustomName("code_interpreter"),
				Input: jsonString(map[string]any{
					"code":        ci.code,
					"containerId": ci.containerID,
				}),
				ProviderExecuted: true,
			},
		}

	case "openai.apply_patch_call.added":
		return x.handleApplyPatchAdded(v, bctx)

	case "openai.apply_patch_call.diff_delta":
		st := x.applyPatch[intValue(v["output_index"])]
		if st == nil || st.endEmitted {
			return nil
		}
		st.hasDiff = true
		return []aisdk.StreamPart{aisdk.ToolInputDelta{
			ID:    st.callID,
			Delta: escapeJSONDelta(stringField(v, "delta")),
		}}

	case "openai.apply_patch_call.diff_done":
		return x.closeApplyPatch(intValue(v["output_index"]), stringField(v, "diff"))

	case "openai.apply_patch_call.done":
		op, _ := v["operation"].(map[string]any)
		return x.closeApplyPatch(intValue(v["output_index"]), stringField(op, "diff"))

	case "openai.provider_tool":
		return x.handleProviderTool(value, bctx)

	case "openai.function_call_done":
		x.hasFunctionCalls = true
		return nil

	case "openai.finish":
		x.finishHint = stringField(v, "incomplete_reason")
		return nil

	case "openai.failed":
		x.sawFailed = true
		if x.responseID == "" {
			x.responseID = stringField(v, "id")
		}
		return nil

	case "openai.response":
		if id := stringField(v, "id"); id != "" {
			x.responseID = id
		}
		x.serviceTier = stringField(v, "service_tier")
		return nil
	}
	return nil
}

func (x *streamExtras) reasoningState(itemID string) *reasoningItemState {
	st, ok := x.reasoning[itemID]
	if !ok {
		st = &reasoningItemState{parts: map[int]summaryPartState{}}
		x.reasoning[itemID] = st
	}
	return st
}

func sortedPartIndexes(st *reasoningItemState) []int {
	indexes := make([]int, 0, len(st.parts))
	for idx := range st.parts {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	return indexes
}

// bareProviderToolCall emits a tool call without an input lifecycle; the
// result arrives later through the output item.
func (x *streamExtras) bareProviderToolCall(v map[string]any, name string) []aisdk.StreamPart {
	id := stringField(v, "tool_call_id")
	x.emittedToolCalls[id] = true
	return []aisdk.StreamPart{aisdk.ToolCall{
		ToolCallID: id, ToolName: name, Input: "{}", ProviderExecuted: true,
	}}
}

func (x *streamExtras) handleAnnotation(v map[string]any) []aisdk.StreamPart {
	itemID := stringField(v, "item_id")
	annotation, ok := v["annotation"].(map[string]any)
	if !ok {
		return nil
	}
	x.annotations[itemID] = append(x.annotations[itemID], annotation)

	withIndex := func(inner map[string]any) map[string]any {
		if idx, ok := annotation["index"]; ok && idx != nil {
			inner["index"] = idx
		}
		return inner
	}

	switch stringField(annotation, "type") {
	case "url_citation":
		return []aisdk.StreamPart{aisdk.SourceURL{
			ID:    uuid.NewString(),
			URL:   stringField(annotation, "url"),
			Title: stringField(annotation, "title"),
		}}
	case "file_citation":
		fileID := stringField(annotation, "file_id")
		title := stringField(annotation, "quote")
		if title == "" {
			title = stringField(annotation, "filename")
		}
		if title == "" {
			title = fileID
		}
		return []aisdk.StreamPart{aisdk.SourceURL{
			ID:    uuid.NewString(),
			URL:   fileID,
			Title: title,
			ProviderMetadata: aisdk.ProviderMetadata{
				"openai": withIndex(map[string]any{"fileId": fileID}),
			},
		}}
	case "container_file_citation":
		fileID := stringField(annotation, "file_id")
		title := stringField(annotation, "filename")
		if title == "" {
			title = fileID
		}
		return []aisdk.StreamPart{aisdk.SourceURL{
			ID:    uuid.NewString(),
			URL:   fileID,
			Title: title,
			ProviderMetadata: aisdk.ProviderMetadata{
				"openai": withIndex(map[string]any{
					"fileId":      fileID,
					"containerId": stringField(annotation, "container_id"),
				}),
			},
		}}
	case "file_path":
		fileID := stringField(annotation, "file_id")
		return []aisdk.StreamPart{aisdk.SourceURL{
			ID:    uuid.NewString(),
			URL:   fileID,
			Title: fileID,
			ProviderMetadata: aisdk.ProviderMetadata{
				"openai": withIndex(map[string]any{"fileId": fileID}),
			},
		}}
	}
	return nil
}

func (x *streamExtras) handleApplyPatchAdded(v map[string]any, bctx buildContext) []aisdk.StreamPart {
	idx := intValue(v["output_index"])
	callID := stringField(v, "call_id")
	op, _ := v["operation"].(map[string]any)
	opType := stringField(op, "type")
	opPath := stringField(op, "path")

	st := &applyPatchState{callID: callID}
	x.applyPatch[idx] = st

	parts := []aisdk.StreamPart{aisdk.ToolInputStart{
		ID:       callID,
		ToolName: bctx.mapping.toCustomName("apply_patch"),
	}}

	if opType == "delete_file" {
		st.endEmitted = true
		input := jsonString(map[string]any{
			"callId":    callID,
			"operation": map[string]any{"type": opType, "path": opPath},
		})
		return append(parts,
			aisdk.ToolInputDelta{ID: callID, Delta: input},
			aisdk.ToolInputEnd{ID: callID},
		)
	}

	prefix := `{"callId":` + jsonString(callID) +
		`,"operation":{"type":` + jsonString(opType) +
		`,"path":` + jsonString(opPath) + `,"diff":"`
	return append(parts, aisdk.ToolInputDelta{ID: callID, Delta: prefix})
}

func (x *streamExtras) closeApplyPatch(idx int, fallbackDiff string) []aisdk.StreamPart {
	st := x.applyPatch[idx]
	if st == nil || st.endEmitted {
		return nil
	}
	st.endEmitted = true
	var parts []aisdk.StreamPart
	if !st.hasDiff && fallbackDiff != "" {
		parts = append(parts, aisdk.ToolInputDelta{ID: st.callID, Delta: escapeJSONDelta(fallbackDiff)})
	}
	return append(parts,
		aisdk.ToolInputDelta{ID: st.callID, Delta: `"}}`},
		aisdk.ToolInputEnd{ID: st.callID},
	)
}

func (x *streamExtras) handleProviderTool(value any, bctx buildContext) []aisdk.StreamPart {
	d, ok := value.(*providerToolData)
	if !ok {
		return nil
	}
	pt := d.parts(bctx.mapping, x.approvals)

	if d.approvalRequest {
		return []aisdk.StreamPart{*pt.toolCall, *pt.approval}
	}

	var parts []aisdk.StreamPart
	callID := pt.toolCall.ToolCallID
	if x.openComputerCalls[callID] {
		delete(x.openComputerCalls, callID)
		parts = append(parts, aisdk.ToolInputEnd{ID: callID, ProviderExecuted: true})
	}
	if !x.emittedToolCalls[callID] {
		parts = append(parts, *pt.toolCall)
	}
	if pt.result != nil {
		parts = append(parts, *pt.result)
	}
	return parts
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
