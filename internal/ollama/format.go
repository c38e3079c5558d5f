package ollama

import (
	"encoding/json"

	"github.com/charmbracelet/relay/internal/proto"
	"github.com/ollama/ollama/api"
)

const roleTool = "tool"

func fromProtoRequest(request proto.Request) *api.ChatRequest {
	b := true
	body := &api.ChatRequest{
		Model:    request.Model,
		Messages: fromProtoMessages(request.Messages),
		Stream:   &b,
		Tools:    fromProtoFunctions(request.Functions),
		Options:  map[string]any{},
	}
	if len(request.Stop) > 0 {
		body.Options["stop"] = request.Stop
	}
	if request.MaxTokens != nil {
		body.Options["num_predict"] = *request.MaxTokens
	}
	if request.Temperature != nil {
		body.Options["temperature"] = *request.Temperature
	}
	if request.TopP != nil {
		body.Options["top_p"] = *request.TopP
	}
	return body
}

func fromProtoFunctions(defs []proto.FunctionDefinition) []api.Tool {
	tools := make([]api.Tool, 0, len(defs))
	for _, def := range defs {
		t := api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        def.Name,
				Description: def.Description,
			},
		}
		if bts, err := json.Marshal(def.Parameters); err == nil {
			_ = json.Unmarshal(bts, &t.Function.Parameters)
		}
		tools = append(tools, t)
	}
	return tools
}

func fromProtoMessages(input []proto.Message) []api.Message {
	messages := make([]api.Message, 0, len(input))
	for _, msg := range input {
		messages = append(messages, fromProtoMessage(msg))
	}
	return messages
}

func fromProtoMessage(input proto.Message) api.Message {
	m := api.Message{
		Content: input.Content,
		Role:    input.Role,
	}
	if input.Role == proto.RoleFunction {
		m.Role = roleTool
	}
	if call := input.FunctionCall; call != nil {
		var args api.ToolCallFunctionArguments
		_ = json.Unmarshal(call.Arguments, &args)
		m.ToolCalls = append(m.ToolCalls, api.ToolCall{
			Function: api.ToolCallFunction{
				Name:      call.Name,
				Arguments: args,
			},
		})
	}
	return m
}

// toProtoChunk converts a streamed message. Ollama sends whole tool calls,
// in one message or spread over several, while a choice holds a single
// function call: tool call number n of the stream goes on choice n. first is
// the number of tool calls already seen in the stream.
func toProtoChunk(resp api.ChatResponse, first int64) proto.Chunk {
	chunk := proto.Chunk{
		Fragments: []proto.Fragment{{
			Role:    resp.Message.Role,
			Content: resp.Message.Content,
		}},
	}
	for i, call := range resp.Message.ToolCalls {
		delta := &proto.FunctionCallDelta{
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments.String(),
		}
		index := first + int64(i)
		if index == 0 {
			chunk.Fragments[0].FunctionCall = delta
			continue
		}
		chunk.Fragments = append(chunk.Fragments, proto.Fragment{
			Index:        index,
			Role:         proto.RoleAssistant,
			FunctionCall: delta,
		})
	}
	return chunk
}
