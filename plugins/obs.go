package plugins

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aituberflow/aituberflow-go/workflow"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// obs-scene-switch and obs-source-toggle both speak the obs-websocket
// v5 JSON protocol (op 0 Hello / op 1 Identify / op 2 Identified / op
// 6 Request / op 7 RequestResponse). Grounded on
// original_source/plugins/obs-scene-switch/node.py and
// obs-source-toggle/node.py, which delegate this to obsws-python; Go
// has no equivalent client in the example pack, so this dials the
// protocol directly over the gorilla/websocket connection already
// wired for the streaming transport (DESIGN.md).

type obsEnvelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type obsHelloData struct {
	Authentication *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication"`
}

type obsClient struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	pending map[string]chan json.RawMessage
}

func dialOBS(ctx context.Context, host string, port int, password string) (*obsClient, error) {
	url := fmt.Sprintf("ws://%s:%d", host, port)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("obs: dial %s: %w", url, err)
	}

	var hello obsEnvelope
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("obs: read hello: %w", err)
	}
	var helloData obsHelloData
	_ = json.Unmarshal(hello.D, &helloData)

	identify := map[string]interface{}{"rpcVersion": 1}
	if helloData.Authentication != nil {
		identify["authentication"] = obsAuthString(password, helloData.Authentication.Salt, helloData.Authentication.Challenge)
	}
	identifyBody, _ := json.Marshal(identify)
	if err := conn.WriteJSON(obsEnvelope{Op: 1, D: identifyBody}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("obs: send identify: %w", err)
	}

	var identified obsEnvelope
	if err := conn.ReadJSON(&identified); err != nil || identified.Op != 2 {
		conn.Close()
		return nil, fmt.Errorf("obs: identify rejected")
	}

	c := &obsClient{conn: conn, pending: map[string]chan json.RawMessage{}}
	go c.readLoop()
	return c, nil
}

// obsAuthString implements obs-websocket v5's challenge-response:
// base64(sha256(base64(sha256(password+salt)) + challenge)).
func obsAuthString(password, salt, challenge string) string {
	secretHash := sha256.Sum256([]byte(password + salt))
	secret := base64.StdEncoding.EncodeToString(secretHash[:])
	authHash := sha256.Sum256([]byte(secret + challenge))
	return base64.StdEncoding.EncodeToString(authHash[:])
}

func (c *obsClient) readLoop() {
	for {
		var env obsEnvelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Op != 7 {
			continue
		}
		var resp struct {
			RequestID string `json:"requestId"`
		}
		_ = json.Unmarshal(env.D, &resp)
		c.mu.Lock()
		ch, ok := c.pending[resp.RequestID]
		if ok {
			delete(c.pending, resp.RequestID)
		}
		c.mu.Unlock()
		if ok {
			ch <- env.D
		}
	}
}

func (c *obsClient) request(ctx context.Context, requestType string, requestData interface{}) (json.RawMessage, error) {
	requestID := uuid.New().String()
	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	c.pending[requestID] = ch
	c.mu.Unlock()

	body, _ := json.Marshal(map[string]interface{}{
		"requestType": requestType,
		"requestId":   requestID,
		"requestData": requestData,
	})
	if err := c.conn.WriteJSON(obsEnvelope{Op: 6, D: body}); err != nil {
		return nil, fmt.Errorf("obs: send request %s: %w", requestType, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("obs: request %s timed out", requestType)
	}
}

func (c *obsClient) Close() error { return c.conn.Close() }

// obsSceneSwitchNode switches the current OBS program scene.
type obsSceneSwitchNode struct {
	workflow.BaseNode
	host      string
	port      int
	password  string
	sceneName string
	client    *obsClient
}

func newOBSSceneSwitchNode() workflow.NodeInterface {
	return &obsSceneSwitchNode{host: "localhost", port: 4455}
}

func (n *obsSceneSwitchNode) Setup(ctx context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.host = stringConfig(cfg, "host", "localhost")
	n.port = intConfig(cfg, "port", 4455)
	n.password = stringConfig(cfg, "password", "")
	n.sceneName = stringConfig(cfg, "scene_name", "")

	nc.Log(fmt.Sprintf("OBS Scene Switch configured: %s:%d", n.host, n.port), "info")
	client, err := dialOBS(ctx, n.host, n.port, n.password)
	if err != nil {
		nc.Log("Failed to connect to OBS: "+err.Error(), "error")
		return nil
	}
	n.client = client
	nc.Log("Connected to OBS WebSocket", "info")
	return nil
}

func (n *obsSceneSwitchNode) Execute(ctx context.Context, inputs workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	if n.client == nil {
		client, err := dialOBS(ctx, n.host, n.port, n.password)
		if err != nil {
			nc.Log("Failed to connect to OBS: "+err.Error(), "error")
			return workflow.Ports{"success": false, "current_scene": "", "scenes": []string{}}, nil
		}
		n.client = client
	}

	target := n.sceneName
	if s := stringInput(inputs["scene_name"]); s != "" {
		target = s
	}
	if target == "" {
		nc.Log("No scene name specified", "warning")
		return workflow.Ports{"success": false, "current_scene": "", "scenes": []string{}}, nil
	}

	_, err := n.client.request(ctx, "SetCurrentProgramScene", map[string]interface{}{"sceneName": target})
	if err != nil {
		nc.Log("Failed to switch scene: "+err.Error(), "error")
		return workflow.Ports{"success": false, "current_scene": "", "scenes": []string{}}, nil
	}
	nc.Log("Switched to scene: "+target, "info")
	return workflow.Ports{"success": true, "current_scene": target, "scenes": []string{target}}, nil
}

func (n *obsSceneSwitchNode) Teardown(context.Context) error {
	if n.client != nil {
		return n.client.Close()
	}
	return nil
}

// obsSourceToggleNode shows or hides a source within a scene via
// SetSceneItemEnabled. Grounded on
// original_source/plugins/obs-source-toggle/node.py.
type obsSourceToggleNode struct {
	workflow.BaseNode
	host       string
	port       int
	password   string
	sceneName  string
	sourceName string
	client     *obsClient
}

func newOBSSourceToggleNode() workflow.NodeInterface {
	return &obsSourceToggleNode{host: "localhost", port: 4455}
}

func (n *obsSourceToggleNode) Setup(ctx context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.host = stringConfig(cfg, "host", "localhost")
	n.port = intConfig(cfg, "port", 4455)
	n.password = stringConfig(cfg, "password", "")
	n.sceneName = stringConfig(cfg, "scene_name", "")
	n.sourceName = stringConfig(cfg, "source_name", "")

	client, err := dialOBS(ctx, n.host, n.port, n.password)
	if err != nil {
		nc.Log("Failed to connect to OBS: "+err.Error(), "error")
		return nil
	}
	n.client = client
	nc.Log("Connected to OBS WebSocket", "info")
	return nil
}

func (n *obsSourceToggleNode) Execute(ctx context.Context, inputs workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	if n.client == nil {
		nc.Log("Not connected to OBS", "error")
		return workflow.Ports{"success": false}, nil
	}

	visible := truthyValue(inputs["visible"])
	resp, err := n.client.request(ctx, "GetSceneItemId", map[string]interface{}{
		"sceneName": n.sceneName, "sourceName": n.sourceName,
	})
	if err != nil {
		nc.Log("Failed to resolve scene item: "+err.Error(), "error")
		return workflow.Ports{"success": false}, nil
	}
	var itemIDResp struct {
		ResponseData struct {
			SceneItemID int `json:"sceneItemId"`
		} `json:"responseData"`
	}
	_ = json.Unmarshal(resp, &itemIDResp)

	_, err = n.client.request(ctx, "SetSceneItemEnabled", map[string]interface{}{
		"sceneName": n.sceneName, "sceneItemId": itemIDResp.ResponseData.SceneItemID, "sceneItemEnabled": visible,
	})
	if err != nil {
		nc.Log("Failed to toggle source: "+err.Error(), "error")
		return workflow.Ports{"success": false}, nil
	}
	nc.Log(fmt.Sprintf("Source %q set visible=%v", n.sourceName, visible), "info")
	return workflow.Ports{"success": true, "visible": visible}, nil
}

func (n *obsSourceToggleNode) Teardown(context.Context) error {
	if n.client != nil {
		return n.client.Close()
	}
	return nil
}
