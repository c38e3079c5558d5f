package openai

import (
	"github.com/charmbracelet/relay/internal/proto"
	"github.com/openai/openai-go"
)

func fromProtoFunctions(defs []proto.FunctionDefinition) []openai.ChatCompletionNewParamsFunction {
	var functions []openai.ChatCompletionNewParamsFunction
	for _, def := range defs {
		fn := openai.ChatCompletionNewParamsFunction{
			Name:       def.Name,
			Parameters: def.Parameters,
		}
		if def.Description != "" {
			fn.Description = openai.String(def.Description)
		}
		functions = append(functions, fn)
	}
	return functions
}

func fromProtoMessages(input []proto.Message) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, msg := range input {
		switch msg.Role {
		case proto.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case proto.RoleFunction:
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfFunction: &openai.ChatCompletionFunctionMessageParam{
					Name:    msg.Name,
					Content: openai.String(msg.Content),
				},
			})
		case proto.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case proto.RoleAssistant:
			m := openai.AssistantMessage(msg.Content)
			if msg.FunctionCall != nil {
				m.OfAssistant.FunctionCall = openai.ChatCompletionAssistantMessageParamFunctionCall{
					Name:      msg.FunctionCall.Name,
					Arguments: string(msg.FunctionCall.Arguments),
				}
			}
			messages = append(messages, m)
		}
	}
	return messages
}

func toProtoChunk(in openai.ChatCompletionChunk) proto.Chunk {
	chunk := proto.Chunk{
		Fragments: make([]proto.Fragment, 0, len(in.Choices)),
	}
	for _, choice := range in.Choices {
		f := proto.Fragment{
			Index:   choice.Index,
			Role:    choice.Delta.Role,
			Content: choice.Delta.Content,
		}
		if fn := choice.Delta.FunctionCall; fn.Name != "" || fn.Arguments != "" {
			f.FunctionCall = &proto.FunctionCallDelta{
				Name:      fn.Name,
				Arguments: fn.Arguments,
			}
		}
		chunk.Fragments = append(chunk.Fragments, f)
	}
	return chunk
}
