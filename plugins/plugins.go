// Package plugins holds the node type catalogue (spec.md §4.4, §6):
// one Go type per original_source/plugins/<type>/node.py, all wired
// into workflow.DefaultRegistry() by register.go's init() instead of
// the duck-typed module scanning the Python implementation used. Node
// bodies are translated into the teacher's idiom (NodeInterface /
// BaseNode, Ports, NodeContext), not transliterated from Python.
package plugins

import (
	"fmt"
	"strconv"
	"strings"
)

// stringInput coerces a port value the way the original nodes do:
// chat-message-shaped maps contribute their "message" or "text" field,
// anything else is formatted with fmt.Sprint. Grounded on
// original_source/plugins/text-transform/node.py's _get_input_value
// and the identical helper duplicated in openai-llm/node.py.
func stringInput(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if m, ok := v.(map[string]interface{}); ok {
		if msg, ok := m["message"]; ok {
			return stringInput(msg)
		}
		if text, ok := m["text"]; ok {
			return stringInput(text)
		}
		return fmt.Sprint(m)
	}
	return fmt.Sprint(v)
}

// boolConfig reads a boolean config value that may arrive as a JSON
// bool, a string, or be entirely absent.
func boolConfig(cfg map[string]interface{}, key string, fallback bool) bool {
	v, ok := cfg[key]
	if !ok {
		return fallback
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return fallback
		}
		return b
	default:
		return fallback
	}
}

func stringConfig(cfg map[string]interface{}, key, fallback string) string {
	v, ok := cfg[key]
	if !ok {
		return fallback
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return fallback
	}
	return s
}

func floatConfig(cfg map[string]interface{}, key string, fallback float64) float64 {
	v, ok := cfg[key]
	if !ok {
		return fallback
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return fallback
		}
		return f
	default:
		return fallback
	}
}

func intConfig(cfg map[string]interface{}, key string, fallback int) int {
	return int(floatConfig(cfg, key, float64(fallback)))
}

// truncate mirrors the original nodes' f"{text[:50]}{'...' if ...}"
// log-preview idiom without pulling in any formatting dependency.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
