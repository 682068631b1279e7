package plugins

import "github.com/aituberflow/aituberflow-go/workflow"

// Register populates registry with every concrete node type this
// package implements, keyed by the node_type string a Graph's
// NodeSpec.Type names (spec.md §3, §6). Grounded on
// original_source/plugins/*/node.py's directory-name-as-type
// convention, made explicit per spec.md §9 ("each plugin exposes
// exactly one named factory; the loader fails fast if it is
// missing") instead of the original's duck-typed module scan.
//
// Callers normally pass workflow.DefaultRegistry() so a single
// process-wide import of this package wires every built-in type; a
// fresh *workflow.Registry is useful for tests that must not leak
// registrations across test cases.
func Register(registry *workflow.Registry) {
	registry.Register("start", newStartNode)
	registry.Register("end", newEndNode)
	registry.Register("manual-input", newManualInputNode)
	registry.Register("console-output", newConsoleOutputNode)

	registry.Register("text-transform", newTextTransformNode)
	registry.Register("data-formatter", newDataFormatterNode)
	registry.Register("variable", newVariableNode)
	registry.Register("random", newRandomNode)
	registry.Register("switch", newSwitchNode)
	registry.Register("delay", newDelayNode)
	registry.Register("timer", newTimerNode)
	registry.Register("http-request", newHTTPRequestNode)

	registry.Register("openai-llm", newOpenAILLMNode)
	registry.Register("anthropic-llm", newAnthropicLLMNode)
	registry.Register("google-llm", newGoogleLLMNode)

	registry.Register("twitch-chat", newTwitchChatNode)
	registry.Register("youtube-chat", newYoutubeChatNode)
	registry.Register("discord-chat", newDiscordChatNode)

	registry.Register("voicevox-tts", newVoicevoxTTSNode)
	registry.Register("coeiroink-tts", newCoeiroinkTTSNode)
	registry.Register("sbv2-tts", newSBV2TTSNode)

	registry.Register("avatar-controller", newAvatarControllerNode)
	registry.Register("obs-scene-switch", newOBSSceneSwitchNode)
	registry.Register("obs-source-toggle", newOBSSourceToggleNode)
}

// init wires every built-in type into the process-wide default
// registry so a bare `import _ ".../plugins"` is enough for a host to
// get the full catalogue, matching the teacher's own package-level
// registration idiom.
func init() {
	Register(workflow.DefaultRegistry())
}
