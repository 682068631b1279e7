package plugins

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/aituberflow/aituberflow-go/workflow"
)

// delayNode sleeps, then passes its input through unchanged. Grounded
// on original_source/plugins/delay/node.py; ctx.Done() is honored so a
// workflow stop does not leave the delay node blocking teardown.
type delayNode struct {
	workflow.BaseNode
	delayMs             int
	randomize           bool
	randomMin, randomMax int
}

func newDelayNode() workflow.NodeInterface {
	return &delayNode{delayMs: 1000, randomMin: 500, randomMax: 2000}
}

func (n *delayNode) Setup(_ context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.delayMs = intConfig(cfg, "delayMs", 1000)
	n.randomize = boolConfig(cfg, "randomize", false)
	n.randomMin = intConfig(cfg, "randomMin", 500)
	n.randomMax = intConfig(cfg, "randomMax", 2000)
	if n.randomize {
		nc.Log("Delay configured: "+strconv.Itoa(n.randomMin)+"-"+strconv.Itoa(n.randomMax)+"ms (random)", "info")
	} else {
		nc.Log("Delay configured: "+strconv.Itoa(n.delayMs)+"ms", "info")
	}
	return nil
}

func (n *delayNode) Execute(ctx context.Context, inputs workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	delay := n.delayMs
	if n.randomize {
		delay = n.randomMin + rand.Intn(n.randomMax-n.randomMin+1)
	}
	nc.Log("Waiting "+strconv.Itoa(delay)+"ms...", "info")
	select {
	case <-time.After(time.Duration(delay) * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	nc.Log("Delay complete", "info")
	return workflow.Ports{"output": inputs["input"]}, nil
}

// timerNode is a source node (spec §4.4's default source-node-type
// set): it runs indefinitely via a background goroutine and publishes
// "timer.tick" bus events rather than waiting to be invoked by a
// runner. original_source/plugins/timer/node.py notes an MVP
// limitation ("executes once... full interval functionality requires
// streaming support"); this redesigns it into the real streaming
// source the spec's source-node model calls for, using the same
// SpawnBackground + ctx.Done() idiom as twitchChatNode.listen.
type timerNode struct {
	workflow.BaseNode
	intervalMs int
	maxTicks   int
	immediate  bool
	tickCount  int
}

func newTimerNode() workflow.NodeInterface { return &timerNode{intervalMs: 5000, immediate: true} }

func (n *timerNode) Setup(ctx context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.intervalMs = intConfig(cfg, "intervalMs", 5000)
	n.maxTicks = intConfig(cfg, "maxTicks", 0)
	n.immediate = boolConfig(cfg, "immediate", true)
	n.tickCount = 0
	nc.Log("Timer configured: interval="+strconv.Itoa(n.intervalMs)+"ms", "info")
	nc.SpawnBackground(ctx, func(bgCtx context.Context) { n.run(bgCtx, nc) })
	return nil
}

func (n *timerNode) run(ctx context.Context, nc *workflow.NodeContext) {
	if n.immediate {
		n.tick(nc)
		if n.maxTicks > 0 && n.tickCount >= n.maxTicks {
			return
		}
	}
	ticker := time.NewTicker(time.Duration(n.intervalMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.tick(nc)
			if n.maxTicks > 0 && n.tickCount >= n.maxTicks {
				return
			}
		}
	}
}

func (n *timerNode) tick(nc *workflow.NodeContext) {
	n.tickCount++
	nc.Log("Timer tick #"+strconv.Itoa(n.tickCount), "info")
	nc.Emit(workflow.Event{
		Type: "timer.tick",
		Payload: map[string]interface{}{
			"tick":      n.tickCount,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// Execute is never called by either runner for a source node (spec
// §4.7: sources are skipped in downstream dispatch and never appear
// in a Kahn pass); it is kept only because the embedded BaseNode
// supplies no Execute and NodeInterface requires one.
func (n *timerNode) Execute(_ context.Context, _ workflow.Ports, _ *workflow.NodeContext) (workflow.Ports, error) {
	return workflow.Ports{}, nil
}
