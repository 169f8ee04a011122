package llm

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openaisdk "github.com/openai/openai-go"

	contractx "github.com/piyachat/chainflow/agent/contract"
	statex "github.com/piyachat/chainflow/agent/state"
)

// ChatCompleter satisfies contract.Completer over an eino chat model.
type ChatCompleter struct {
	model einomodel.BaseChatModel
}

var _ contractx.Completer = (*ChatCompleter)(nil)

func NewChatCompleter(model einomodel.BaseChatModel) *ChatCompleter {
	return &ChatCompleter{model: model}
}

func (c *ChatCompleter) Complete(
	ctx context.Context,
	systemPrompt string,
	history []statex.Message,
	userContent string,
) (string, error) {
	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	for _, entry := range history {
		if entry.Role == statex.RoleAssistant {
			messages = append(messages, schema.AssistantMessage(entry.Content, nil))
		} else {
			messages = append(messages, schema.UserMessage(entry.Content))
		}
	}
	messages = append(messages, schema.UserMessage(userContent))

	out, err := c.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}

	content := strings.TrimSpace(out.Content)
	if content == "" {
		return "", fmt.Errorf("%w: completion is empty", contractx.ErrModelInvoke)
	}
	return content, nil
}

// SDKCompleter drives the OpenAI SDK directly. The dispatcher uses it for
// the degraded path when a handler fails, so it must not share failure
// modes with the eino pipeline above it.
type SDKCompleter struct {
	client *openaisdk.Client
	model  string
}

var _ contractx.Completer = (*SDKCompleter)(nil)

func NewSDKCompleter(client *openaisdk.Client, model string) *SDKCompleter {
	return &SDKCompleter{client: client, model: model}
}

func (c *SDKCompleter) Complete(
	ctx context.Context,
	systemPrompt string,
	history []statex.Message,
	userContent string,
) (string, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(systemPrompt),
		},
	}
	for _, entry := range history {
		if entry.Role == statex.RoleAssistant {
			params.Messages = append(params.Messages, openaisdk.AssistantMessage(entry.Content))
		} else {
			params.Messages = append(params.Messages, openaisdk.UserMessage(entry.Content))
		}
	}
	params.Messages = append(params.Messages, openaisdk.UserMessage(userContent))

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: completion has no choices", contractx.ErrModelInvoke)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: completion is empty", contractx.ErrModelInvoke)
	}
	return content, nil
}
