package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// NodeFactory constructs a fresh NodeInterface instance for one
// NodeRuntime. Factories are the explicit convention spec §9 mandates
// in place of duck-typed module scanning: each plugin registers
// exactly one named factory, and the loader fails fast if it is
// missing rather than guessing at a module's exports.
type NodeFactory func() NodeInterface

// PluginManifest is the on-disk descriptor for a catalogue entry
// (spec §6 "Plugin catalogue"). Grounded on
// original_source/packages/sdk/aituber_flow_sdk/types.py's
// PluginManifest, adopting the wider pack's YAML-manifest convention
// (whisper-darkly-sticky-dvr, nugget-thane-ai-agent both describe
// plugins/configs this way) since the teacher itself has no manifest
// format of its own.
type PluginManifest struct {
	Type        string `yaml:"type"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
	Module      string `yaml:"module"`
	Factory     string `yaml:"factory"`
}

// Registry resolves a node_type string to a NodeFactory (C7). It is
// process-wide and read-mostly: factories registered once at program
// start (or discovered once from a catalogue directory) are cached
// and shared across every workflow.
type Registry struct {
	mu       sync.RWMutex
	builtins map[string]NodeFactory
	manifest map[string]PluginManifest
}

// globalRegistry is the process-wide cache described in spec §4.4;
// plugins/ packages call Register from their init() functions.
var globalRegistry = NewRegistry()

// NewRegistry constructs an empty registry. Most callers use
// DefaultRegistry(); a fresh Registry is useful for tests that must
// not leak registrations into other tests.
func NewRegistry() *Registry {
	return &Registry{
		builtins: make(map[string]NodeFactory),
		manifest: make(map[string]PluginManifest),
	}
}

// DefaultRegistry returns the process-wide registry that plugins/
// packages register themselves into.
func DefaultRegistry() *Registry { return globalRegistry }

// Register adds factory under nodeType. A second Register for the
// same type overwrites the first — last one wins, matching a
// process-wide cache that's refreshed rather than append-only.
func (r *Registry) Register(nodeType string, factory NodeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtins[nodeType] = factory
}

// LoadManifestDir scans dir for one-level subdirectories, each
// expected to contain a manifest.yaml describing a plugin (spec §6
// "Plugin catalogue": "a directory where each subfolder named
// node_type exposes a factory discoverable by convention"). Manifests
// are recorded for introspection (Describe); they do not themselves
// resolve to a runnable factory — the engine does not prescribe the
// transport of the module itself (spec §6), so the actual NodeFactory
// for a manifest-described type must still be Register-ed by code
// (typically a plugins/ package whose init() both registers the
// factory and expects a matching manifest.yaml to exist for docs/UI
// purposes).
func (r *Registry) LoadManifestDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("workflow: load manifest dir %q: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		manifestPath := filepath.Join(dir, entry.Name(), "manifest.yaml")
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("workflow: read manifest %q: %w", manifestPath, err)
		}
		var m PluginManifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("workflow: parse manifest %q: %w", manifestPath, err)
		}
		if m.Type == "" {
			m.Type = entry.Name()
		}
		r.mu.Lock()
		r.manifest[m.Type] = m
		r.mu.Unlock()
	}
	return nil
}

// Describe returns the manifest recorded for nodeType, if any.
func (r *Registry) Describe(nodeType string) (PluginManifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.manifest[nodeType]
	return m, ok
}

// resolve looks up a NodeFactory for nodeType, returning ok=false if
// none is registered.
func (r *Registry) resolve(nodeType string) (NodeFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.builtins[nodeType]
	return f, ok
}

// noopNode is the last-resort fallback (spec §4.4): "logs 'unknown
// node type' and treats the node as a no-op producing {}."
type noopNode struct{ BaseNode }

func (noopNode) Execute(context.Context, Ports, *NodeContext) (Ports, error) {
	return Ports{}, nil
}

// loadNode resolves nodeType to a fresh NodeInterface instance via
// registry, falling back to noopNode and a NodeLoadError (logged, not
// returned fatally — spec §4.4/§7.2) when nothing is registered.
func loadNode(registry *Registry, nodeID, nodeType string, logf func(string, ...interface{})) NodeInterface {
	factory, ok := registry.resolve(nodeType)
	if !ok {
		err := &NodeLoadError{NodeID: nodeID, NodeType: nodeType, Cause: fmt.Errorf("no factory registered")}
		logf("workflow: %v, falling back to no-op node", err)
		return noopNode{}
	}
	return factory()
}
