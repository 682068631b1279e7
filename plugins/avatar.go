package plugins

import (
	"context"

	"github.com/aituberflow/aituberflow-go/workflow"
)

// avatarControllerNode receives expression/mouth/motion inputs and
// emits the corresponding avatar.* events for the stream overlay to
// render; it performs no emotion analysis or lip-sync calculation of
// its own (those are separate upstream nodes). Grounded on
// original_source/plugins/avatar-controller/node.py.
type avatarControllerNode struct {
	workflow.BaseNode
	renderer          string
	modelURL          string
	idleAnimation     string
	currentExpression string
	currentIntensity  float64
}

func newAvatarControllerNode() workflow.NodeInterface {
	return &avatarControllerNode{renderer: "vrm", currentExpression: "neutral"}
}

func (n *avatarControllerNode) Setup(_ context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.renderer = stringConfig(cfg, "renderer", "vrm")
	n.modelURL = stringConfig(cfg, "modelUrl", "/models/avatar.vrm")
	n.idleAnimation = stringConfig(cfg, "idleAnimation", "")

	nc.Log("Avatar controller initialized: renderer="+n.renderer+", model="+n.modelURL, "info")
	nc.Emit(workflow.Event{
		Type: "avatar.update",
		Payload: map[string]interface{}{
			"renderer":      n.renderer,
			"modelUrl":      n.modelURL,
			"idleAnimation": n.idleAnimation,
		},
	})
	return nil
}

func (n *avatarControllerNode) Execute(_ context.Context, inputs workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	expression, _ := inputs["expression"].(string)
	motion, _ := inputs["motion"].(string)
	mouth, hasMouth := inputs["mouth"]

	var applied []string

	if expression != "" && expression != n.currentExpression {
		n.currentExpression = expression
		n.currentIntensity = floatConfig(map[string]interface{}{"intensity": inputs["intensity"]}, "intensity", 0.5)
		nc.Emit(workflow.Event{
			Type:    "avatar.expression",
			Payload: map[string]interface{}{"expression": expression, "intensity": n.currentIntensity},
		})
		applied = append(applied, "expression:"+expression)
		nc.Log("Expression set: "+expression, "info")
	}

	if hasMouth {
		mouthVal := clamp01(floatConfig(map[string]interface{}{"mouth": mouth}, "mouth", 0))
		nc.Emit(workflow.Event{Type: "avatar.mouth", Payload: map[string]interface{}{"value": mouthVal}})
		applied = append(applied, "mouth")
	}

	if motion != "" {
		nc.Emit(workflow.Event{Type: "avatar.motion", Payload: map[string]interface{}{"motion": motion}})
		applied = append(applied, "motion:"+motion)
		nc.Log("Motion triggered: "+motion, "info")
	}

	status := "no changes"
	if len(applied) > 0 {
		status = applied[0]
		for _, a := range applied[1:] {
			status += ", " + a
		}
	}
	return workflow.Ports{"status": status}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
