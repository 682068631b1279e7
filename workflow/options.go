package workflow

import (
	"fmt"

	"github.com/aituberflow/aituberflow-go/workflow/emit"
)

// Option configures a Supervisor at construction time. Functional
// options, grounded on the teacher's graph/options.go
// (type Option func(*engineConfig) error / With* constructors).
type Option func(*config) error

type config struct {
	queueCapacity   int
	historyLimit    int
	sourceNodeTypes map[string]struct{}
	metrics         *PrometheusMetrics
	emitter         emit.Emitter
}

// defaultSourceNodeTypes is the engine-known set of node types that
// run indefinitely rather than participating in a Kahn pass (spec
// §4.7). Grounded on original_source/.../executor.py's
// SOURCE_NODE_TYPES = {'twitch-chat', 'youtube-chat', 'timer'}, plus
// the Discord listener named in original_source/_INDEX.md's plugin
// catalogue (discord-chat).
func defaultSourceNodeTypes() map[string]struct{} {
	return map[string]struct{}{
		"twitch-chat":  {},
		"youtube-chat": {},
		"timer":        {},
		"discord-chat": {},
	}
}

func newConfig(opts []Option) (config, error) {
	cfg := config{
		queueCapacity:   100, // spec §9 open question: heuristic, configurable
		historyLimit:    100, // spec §9 open question: heuristic, configurable
		sourceNodeTypes: defaultSourceNodeTypes(),
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, err
		}
	}
	return cfg, nil
}

// WithQueueCapacity overrides the default bounded-event-queue capacity
// (100) used by event-driven workflows.
func WithQueueCapacity(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return fmt.Errorf("workflow: queue capacity must be positive, got %d", n)
		}
		c.queueCapacity = n
		return nil
	}
}

// WithHistoryLimit overrides the default event-bus history length
// (100, I6).
func WithHistoryLimit(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return fmt.Errorf("workflow: history limit must be positive, got %d", n)
		}
		c.historyLimit = n
		return nil
	}
}

// WithSourceNodeTypes replaces the engine-known source-node-type set
// (spec §4.7 calls this "a small, engine-known set... the engine
// holds this set as configuration").
func WithSourceNodeTypes(types ...string) Option {
	return func(c *config) error {
		m := make(map[string]struct{}, len(types))
		for _, t := range types {
			m[t] = struct{}{}
		}
		c.sourceNodeTypes = m
		return nil
	}
}

// WithMetrics attaches a Prometheus metrics collector. Optional; nil
// by default so unit tests don't need a registry.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(c *config) error {
		c.metrics = m
		return nil
	}
}

// WithEmitter attaches an observability Emitter (workflow/emit). Each
// log line the supervisor itself writes for a workflow produces one
// Emit call; NodeContext.Log calls and successful node executions
// produce none. See emit.Emitter.
func WithEmitter(e emit.Emitter) Option {
	return func(c *config) error {
		c.emitter = e
		return nil
	}
}
