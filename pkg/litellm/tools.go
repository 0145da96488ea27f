package litellm

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"

	"github.com/freitascorp/platform-mcp/pkg/platform"
	"github.com/freitascorp/platform-mcp/pkg/tools"
)

type chatArgs struct {
	Model       string           `json:"model" jsonschema:"Model name as configured on the proxy"`
	Messages    []map[string]any `json:"messages" jsonschema:"Conversation as {role, content} objects; roles: system, developer, user, assistant"`
	Temperature *float64         `json:"temperature,omitempty" jsonschema:"Sampling temperature"`
	MaxTokens   int              `json:"max_tokens,omitempty" jsonschema:"Maximum tokens to generate"`
}

type embeddingArgs struct {
	Model string   `json:"model" jsonschema:"Model name as configured on the proxy"`
	Input []string `json:"input" jsonschema:"Texts to embed"`
}

type messageArgs struct {
	Model     string `json:"model" jsonschema:"Model name as configured on the proxy"`
	Prompt    string `json:"prompt" jsonschema:"User prompt"`
	System    string `json:"system,omitempty" jsonschema:"System prompt"`
	MaxTokens int    `json:"max_tokens,omitempty" jsonschema:"Maximum tokens to generate"`
}

type keyInfoArgs struct {
	Key string `json:"key,omitempty" jsonschema:"Virtual key (defaults to the key in use)"`
}

type spendLogsArgs struct {
	StartDate string `json:"start_date,omitempty" jsonschema:"Start date, YYYY-MM-DD"`
	EndDate   string `json:"end_date,omitempty" jsonschema:"End date, YYYY-MM-DD"`
}

// Tools returns the LiteLLM tool catalog.
func (c *Client) Tools() []tools.Tool {
	return []tools.Tool{
		tools.New("list_models", "List models served by the proxy", c.listModels),
		tools.New("chat_completion", "Run an OpenAI-compatible chat completion", c.chatCompletion),
		tools.New("create_embedding", "Create embeddings for a list of inputs", c.createEmbedding),
		tools.New("create_message", "Send a prompt through the Anthropic-compatible messages API", c.createMessage,
			tools.Default("max_tokens", 1024),
		),
		tools.New("get_model_info", "Get deployment details of every model", c.getModelInfo),
		tools.New("health_check", "Check the health of configured deployments", c.healthCheck),
		tools.New("get_key_info", "Get information about a virtual key", c.getKeyInfo),
		tools.New("get_spend_logs", "Get spend logs", c.getSpendLogs),
	}
}

func (c *Client) listModels(ctx context.Context, _ tools.NoArgs) (any, error) {
	page, err := c.openai.Models.List(ctx)
	if err != nil {
		return nil, c.sdkError(err)
	}
	data := make([]json.RawMessage, 0, len(page.Data))
	for _, m := range page.Data {
		data = append(data, json.RawMessage(m.RawJSON()))
	}
	return map[string]any{"object": "list", "data": data}, nil
}

// chatMessages maps loose {role, content} objects onto SDK message params.
func (c *Client) chatMessages(in []map[string]any) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(in))
	for i, m := range in {
		role, _ := m["role"].(string)
		content, ok := m["content"].(string)
		if !ok {
			return nil, c.api.Errorf("messages[%d]: content must be a string", i)
		}
		switch role {
		case "system":
			out = append(out, openai.SystemMessage(content))
		case "developer":
			out = append(out, openai.DeveloperMessage(content))
		case "user":
			out = append(out, openai.UserMessage(content))
		case "assistant":
			out = append(out, openai.AssistantMessage(content))
		default:
			return nil, c.api.Errorf("messages[%d]: unsupported role %q", i, role)
		}
	}
	return out, nil
}

func (c *Client) chatCompletion(ctx context.Context, a chatArgs) (any, error) {
	msgs, err := c.chatMessages(a.Messages)
	if err != nil {
		return nil, err
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(a.Model),
		Messages: msgs,
	}
	if a.Temperature != nil {
		params.Temperature = openai.Float(*a.Temperature)
	}
	if a.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(a.MaxTokens))
	}
	resp, err := c.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, c.sdkError(err)
	}
	return json.RawMessage(resp.RawJSON()), nil
}

func (c *Client) createEmbedding(ctx context.Context, a embeddingArgs) (any, error) {
	resp, err := c.openai.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(a.Model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: a.Input},
	})
	if err != nil {
		return nil, c.sdkError(err)
	}
	return json.RawMessage(resp.RawJSON()), nil
}

func (c *Client) createMessage(ctx context.Context, a messageArgs) (any, error) {
	if a.MaxTokens <= 0 {
		return nil, c.api.Errorf("max_tokens must be positive, got %d", a.MaxTokens)
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: int64(a.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(a.Prompt)),
		},
	}
	if a.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: a.System}}
	}
	msg, err := c.anthropic.Messages.New(ctx, params)
	if err != nil {
		return nil, c.sdkError(err)
	}
	return json.RawMessage(msg.RawJSON()), nil
}

func (c *Client) getModelInfo(ctx context.Context, _ tools.NoArgs) (any, error) {
	return c.api.Get(ctx, "/model/info", nil, nil)
}

func (c *Client) healthCheck(ctx context.Context, _ tools.NoArgs) (any, error) {
	return c.api.Get(ctx, "/health", nil, nil)
}

func (c *Client) getKeyInfo(ctx context.Context, a keyInfoArgs) (any, error) {
	return c.api.Get(ctx, "/key/info", nil, platform.Query("key", a.Key))
}

func (c *Client) getSpendLogs(ctx context.Context, a spendLogsArgs) (any, error) {
	if (a.StartDate == "") != (a.EndDate == "") {
		return nil, c.api.Errorf("start_date and end_date must be given together")
	}
	return c.api.Get(ctx, "/spend/logs", nil, platform.Query("start_date", a.StartDate, "end_date", a.EndDate))
}
