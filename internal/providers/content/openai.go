package content

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/smallbiznis/incomeengine/internal/engine/domain"
	"github.com/smallbiznis/incomeengine/internal/providers/transport"
)

const (
	openAIName         = "openai"
	openAIDefaultURL   = "https://api.openai.com/v1/chat/completions"
	openAIDefaultModel = "gpt-3.5-turbo"
)

type OpenAI struct {
	apiKey   string
	model    string
	endpoint string
	client   *transport.Client
	throttle Throttle
}

func NewOpenAI(apiKey, model string, client *transport.Client, throttle Throttle) *OpenAI {
	if client == nil {
		client = transport.New()
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAI{
		apiKey:   strings.TrimSpace(apiKey),
		model:    model,
		endpoint: openAIDefaultURL,
		client:   client,
		throttle: throttle,
	}
}

func (o *OpenAI) WithEndpoint(url string) *OpenAI {
	o.endpoint = url
	return o
}

func (o *OpenAI) Name() string { return openAIName }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Generate(ctx context.Context, topic string, constraints domain.Constraints) (domain.GeneratedContent, error) {
	if o.apiKey == "" {
		return domain.GeneratedContent{}, fmt.Errorf("%s: no api key: %w", openAIName, domain.ErrProviderUnavailable)
	}
	if err := allow(ctx, o.throttle, openAIName); err != nil {
		return domain.GeneratedContent{}, err
	}

	messages := make([]chatMessage, 0, 2)
	if constraints.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: constraints.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: topic})

	var resp chatResponse
	err := o.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    o.endpoint,
		Header: http.Header{"Authorization": {"Bearer " + o.apiKey}},
		Body: chatRequest{
			Model:       o.model,
			Messages:    messages,
			MaxTokens:   constraints.MaxTokens,
			Temperature: constraints.Temperature,
		},
	}, &resp)
	if err != nil {
		return domain.GeneratedContent{}, providerError(openAIName, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return domain.GeneratedContent{}, fmt.Errorf("%s: empty completion: %w", openAIName, domain.ErrProvider)
	}
	return domain.GeneratedContent{Body: resp.Choices[0].Message.Content}, nil
}
