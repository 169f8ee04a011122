package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	contractx "github.com/piyachat/chainflow/agent/contract"
	statex "github.com/piyachat/chainflow/agent/state"
)

// Config describes the OpenRouter-compatible completion endpoint. Each
// capability can override the default model and temperature.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	CoordinatorModel       string  `envconfig:"COORDINATOR_MODEL" split_words:"true"`
	SpecialistModel        string  `envconfig:"SPECIALIST_MODEL" split_words:"true"`
	CoordinatorTemperature float32 `envconfig:"COORDINATOR_TEMPERATURE" split_words:"true" default:"-1"`
	SpecialistTemperature  float32 `envconfig:"SPECIALIST_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: completion api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// ModelFor resolves the model name and temperature for a capability.
func (c Config) ModelFor(cap statex.Capability) (string, float32) {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	if cap == statex.CapCoordinator {
		if v := strings.TrimSpace(c.CoordinatorModel); v != "" {
			modelName = v
		}
		if c.CoordinatorTemperature >= 0 {
			temp = c.CoordinatorTemperature
		}
		return modelName, temp
	}

	if v := strings.TrimSpace(c.SpecialistModel); v != "" {
		modelName = v
	}
	if c.SpecialistTemperature >= 0 {
		temp = c.SpecialistTemperature
	}
	return modelName, temp
}

// NewChatModel builds an eino chat model for the given capability.
func (c Config) NewChatModel(ctx context.Context, cap statex.Capability) (einomodel.ToolCallingChatModel, error) {
	modelName, temp := c.ModelFor(cap)
	maxTokens := c.MaxCompletionToken

	conf := &openaimodel.ChatModelConfig{
		BaseURL:     strings.TrimRight(c.BaseURL, "/"),
		APIKey:      strings.TrimSpace(c.APIKey),
		Model:       modelName,
		MaxTokens:   &maxTokens,
		Temperature: &temp,
		Timeout:     c.Timeout,
	}

	m, err := openaimodel.NewChatModel(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("%w: create chat model for %s: %v", contractx.ErrModelInvoke, cap, err)
	}
	return m, nil
}

// NewSDKClient builds a raw OpenAI SDK client against the same endpoint,
// used for the dispatcher's context-light fallback completion.
func (c Config) NewSDKClient() *openaisdk.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(c.APIKey)),
	}
	if trimmed := strings.TrimRight(c.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if c.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(c.Timeout))
	}
	if c.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", c.SiteURL))
	}
	if c.SiteName != "" {
		opts = append(opts, option.WithHeader("X-Title", c.SiteName))
	}

	client := openaisdk.NewClient(opts...)
	return &client
}
