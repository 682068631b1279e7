package plugins

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aituberflow/aituberflow-go/workflow"
	openaisdk "github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// demoResponse is returned by every LLM node when its API key is
// unset, matching original_source's "auto demo mode" convention (see
// e.g. openai-llm/node.py's DEMO_RESPONSE).
const demoResponse = "これはデモモードの応答です。実際のLLMを使用するにはAPIキーを設定してください。"

// buildSystemPrompt folds the workflow's character personality into
// the node's base system prompt, the way every *-llm node.py does via
// context.get_character_name()/get_character_personality().
func buildSystemPrompt(base string, nc *workflow.NodeContext) string {
	personality := nc.CharacterPersonality()
	if personality == "" {
		return base
	}
	return fmt.Sprintf("%s\n\nYou are %s. %s", base, nc.CharacterName(), personality)
}

// openaiLLMNode generates chat completions via the OpenAI API.
// Grounded on original_source/plugins/openai-llm/node.py for the
// demo-mode/prompt-sections semantics and on the teacher's
// graph/model/openai/openai.go for the openai-go call shape.
type openaiLLMNode struct {
	workflow.BaseNode
	apiKey       string
	model        string
	systemPrompt string
	temperature  float64
	maxTokens    int
	client       *openaisdk.Client
}

func newOpenAILLMNode() workflow.NodeInterface {
	return &openaiLLMNode{model: "gpt-4o-mini", systemPrompt: "You are a helpful assistant.", temperature: 0.7, maxTokens: 1024}
}

func (n *openaiLLMNode) Setup(_ context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.apiKey = stringConfig(cfg, "apiKey", "")
	n.model = stringConfig(cfg, "model", "gpt-4o-mini")
	n.systemPrompt = stringConfig(cfg, "systemPrompt", "You are a helpful assistant.")
	n.temperature = floatConfig(cfg, "temperature", 0.7)
	n.maxTokens = intConfig(cfg, "maxTokens", 1024)

	if n.apiKey == "" {
		nc.Log("[デモモード] OpenAI APIキー未設定 - 定型文応答を返します", "warning")
		return nil
	}
	client := openaisdk.NewClient(openaioption.WithAPIKey(n.apiKey))
	n.client = &client
	nc.Log(fmt.Sprintf("OpenAI client initialized (model: %s)", n.model), "info")
	return nil
}

func (n *openaiLLMNode) Execute(ctx context.Context, inputs workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	if n.client == nil {
		nc.Log("[デモモード] 定型文応答を返します", "info")
		return workflow.Ports{"response": demoResponse}, nil
	}
	prompt := stringInput(inputs["prompt"])
	if prompt == "" {
		nc.Log("No prompt provided", "warning")
		return workflow.Ports{"response": ""}, nil
	}

	nc.Log(fmt.Sprintf("Calling OpenAI API (%s)...", n.model), "info")
	resp, err := n.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(n.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(buildSystemPrompt(n.systemPrompt, nc)),
			openaisdk.UserMessage(prompt),
		},
		Temperature: openaisdk.Float(n.temperature),
		MaxTokens:   openaisdk.Int(int64(n.maxTokens)),
	})
	if err != nil {
		nc.Log("Unexpected error: "+err.Error(), "error")
		return workflow.Ports{"response": "Error: " + err.Error()}, nil
	}
	if len(resp.Choices) == 0 {
		return workflow.Ports{"response": ""}, nil
	}
	text := resp.Choices[0].Message.Content
	nc.Log(fmt.Sprintf("Response received (%d chars)", len(text)), "info")
	nc.Emit(workflow.Event{Type: "response.generated", Payload: map[string]interface{}{"text": text, "model": n.model}})
	return workflow.Ports{"response": text}, nil
}

func (n *openaiLLMNode) Teardown(context.Context) error { n.client = nil; return nil }

// anthropicLLMNode generates chat completions via the Anthropic
// Messages API. Grounded on the teacher's
// graph/model/anthropic/anthropic.go call shape, with demo-mode
// behavior borrowed from openai-llm/node.py (no equivalent
// anthropic-llm/node.py ships in original_source's kept file set).
type anthropicLLMNode struct {
	workflow.BaseNode
	apiKey       string
	model        string
	systemPrompt string
	maxTokens    int64
	client       *anthropicsdk.Client
}

func newAnthropicLLMNode() workflow.NodeInterface {
	return &anthropicLLMNode{model: "claude-3-5-sonnet-20241022", systemPrompt: "You are a helpful assistant.", maxTokens: 4096}
}

func (n *anthropicLLMNode) Setup(_ context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.apiKey = stringConfig(cfg, "apiKey", "")
	n.model = stringConfig(cfg, "model", "claude-3-5-sonnet-20241022")
	n.systemPrompt = stringConfig(cfg, "systemPrompt", "You are a helpful assistant.")
	n.maxTokens = int64(intConfig(cfg, "maxTokens", 4096))

	if n.apiKey == "" {
		nc.Log("[デモモード] Anthropic APIキー未設定 - 定型文応答を返します", "warning")
		return nil
	}
	client := anthropicsdk.NewClient(anthropicoption.WithAPIKey(n.apiKey))
	n.client = &client
	nc.Log(fmt.Sprintf("Anthropic client initialized (model: %s)", n.model), "info")
	return nil
}

func (n *anthropicLLMNode) Execute(ctx context.Context, inputs workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	if n.client == nil {
		nc.Log("[デモモード] 定型文応答を返します", "info")
		return workflow.Ports{"response": demoResponse}, nil
	}
	prompt := stringInput(inputs["prompt"])
	if prompt == "" {
		nc.Log("No prompt provided", "warning")
		return workflow.Ports{"response": ""}, nil
	}

	nc.Log(fmt.Sprintf("Calling Anthropic API (%s)...", n.model), "info")
	resp, err := n.client.Messages.New(ctx, anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(n.model),
		MaxTokens: n.maxTokens,
		System:    []anthropicsdk.TextBlockParam{{Text: buildSystemPrompt(n.systemPrompt, nc)}},
		Messages:  []anthropicsdk.MessageParam{anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(prompt))},
	})
	if err != nil {
		nc.Log("Unexpected error: "+err.Error(), "error")
		return workflow.Ports{"response": "Error: " + err.Error()}, nil
	}

	var text string
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			if text != "" {
				text += "\n"
			}
			text += b.Text
		}
	}
	nc.Log(fmt.Sprintf("Response received (%d chars)", len(text)), "info")
	nc.Emit(workflow.Event{Type: "response.generated", Payload: map[string]interface{}{"text": text, "model": n.model}})
	return workflow.Ports{"response": text}, nil
}

func (n *anthropicLLMNode) Teardown(context.Context) error { n.client = nil; return nil }

// googleLLMNode generates text via Gemini. Grounded on the teacher's
// graph/model/google/google.go GenerateContent call shape.
type googleLLMNode struct {
	workflow.BaseNode
	apiKey       string
	model        string
	systemPrompt string
	client       *genai.Client
}

func newGoogleLLMNode() workflow.NodeInterface {
	return &googleLLMNode{model: "gemini-1.5-flash", systemPrompt: "You are a helpful assistant."}
}

func (n *googleLLMNode) Setup(ctx context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.apiKey = stringConfig(cfg, "apiKey", "")
	n.model = stringConfig(cfg, "model", "gemini-1.5-flash")
	n.systemPrompt = stringConfig(cfg, "systemPrompt", "You are a helpful assistant.")

	if n.apiKey == "" {
		nc.Log("[デモモード] Google APIキー未設定 - 定型文応答を返します", "warning")
		return nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(n.apiKey))
	if err != nil {
		nc.Log("Failed to create Gemini client: "+err.Error(), "error")
		return nil
	}
	n.client = client
	nc.Log(fmt.Sprintf("Gemini client initialized (model: %s)", n.model), "info")
	return nil
}

func (n *googleLLMNode) Execute(ctx context.Context, inputs workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	if n.client == nil {
		nc.Log("[デモモード] 定型文応答を返します", "info")
		return workflow.Ports{"response": demoResponse}, nil
	}
	prompt := stringInput(inputs["prompt"])
	if prompt == "" {
		nc.Log("No prompt provided", "warning")
		return workflow.Ports{"response": ""}, nil
	}

	genModel := n.client.GenerativeModel(n.model)
	genModel.SystemInstruction = genai.NewUserContent(genai.Text(buildSystemPrompt(n.systemPrompt, nc)))

	nc.Log(fmt.Sprintf("Calling Gemini API (%s)...", n.model), "info")
	resp, err := genModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		nc.Log("Unexpected error: "+err.Error(), "error")
		return workflow.Ports{"response": "Error: " + err.Error()}, nil
	}

	var text string
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text += string(t)
			}
		}
	}
	nc.Log(fmt.Sprintf("Response received (%d chars)", len(text)), "info")
	nc.Emit(workflow.Event{Type: "response.generated", Payload: map[string]interface{}{"text": text, "model": n.model}})
	return workflow.Ports{"response": text}, nil
}

func (n *googleLLMNode) Teardown(context.Context) error {
	if n.client != nil {
		return n.client.Close()
	}
	return nil
}
