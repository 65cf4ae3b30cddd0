package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"

	"skinmatch"
	"skinmatch/match"
)

const DefaultModel = "qwen3:8b"

const recommendSystem = `You are a friendly skincare advisor inside a shopping assistant.
You will receive one product surrounded by <product></product> and the shopper's
own words about their skin and preferences surrounded by <user></user>.
Respond with a JSON object only, with two string keys:
"description": two or three sentences explaining why this product suits this shopper,
"routine": a short AM/PM routine showing where the product fits.
Only use facts from the product context. Do not invent ingredients, reviews or claims.`

const composeSystem = `You turn a shopper's skin concerns into a search query for an online store.
The concerns will be surrounded by <concerns></concerns>.
Respond with a JSON object only: {"query": "<a short product search phrase, at most eight words>"}.`

var (
	_ match.Generator = Ollama{}
	_ match.Composer  = Ollama{}
)

// Ollama writes recommendations and search phrases with a local model
type Ollama struct {
	client *api.Client
	model  string
}

func New(client *api.Client, model string) Ollama {
	if model == "" {
		model = DefaultModel
	}
	return Ollama{
		client: client,
		model:  model,
	}
}

func (o Ollama) Recommend(ctx context.Context, req match.RecommendRequest) (match.Recommendation, error) {
	text, err := o.generate(ctx, recommendSystem, recommendPrompt(req.Product, req.Preference))
	if err != nil {
		return match.Recommendation{}, err
	}

	var reply struct {
		Description string `json:"description"`
		Routine     string `json:"routine"`
	}
	if err := json.Unmarshal([]byte(text), &reply); err != nil || strings.TrimSpace(reply.Description) == "" {
		// the model ignored the format; keep what it wrote
		return match.Recommendation{Description: text}, nil
	}

	return match.Recommendation{
		Description: strings.TrimSpace(reply.Description),
		Routine:     strings.TrimSpace(reply.Routine),
	}, nil
}

func (o Ollama) ComposeQuery(ctx context.Context, tags []string) (string, error) {
	prompt := fmt.Sprintf("<concerns>%s</concerns>", strings.Join(tags, ", "))
	text, err := o.generate(ctx, composeSystem, prompt)
	if err != nil {
		return "", err
	}

	var reply struct {
		Query string `json:"query"`
	}
	query := text
	if err := json.Unmarshal([]byte(text), &reply); err == nil {
		query = reply.Query
	}
	query = strings.Trim(strings.TrimSpace(query), `"`)
	if query == "" {
		return "", errors.New("model returned an empty search query")
	}
	return query, nil
}

func (o Ollama) generate(ctx context.Context, system, prompt string) (string, error) {
	var sb strings.Builder
	err := o.client.Generate(ctx, &api.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		System: system,
		Format: json.RawMessage(`"json"`),
		Stream: new(bool),
		Think:  &api.ThinkValue{Value: false},
	}, func(gr api.GenerateResponse) error {
		sb.WriteString(gr.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("model returned an empty response")
	}
	return text, nil
}

func recommendPrompt(p skinmatch.Product, preference string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<product name=%q price=%q concerns=%q>", p.Name, p.Price.String(), strings.Join(p.Tags, ", ")))
	sb.WriteString(p.Description)
	sb.WriteString("</product>\n")
	sb.WriteString(fmt.Sprintf("<user>%s</user>", preference))
	return sb.String()
}
