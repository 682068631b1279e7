package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/aituberflow/aituberflow-go/workflow"
	"github.com/google/uuid"
)

// ttsAudioDir is where synthesized clips land; original_source writes
// into apps/server/audio_output, a frontend-serving convention this
// module has no equivalent of, so it falls back to the OS temp dir.
var ttsAudioDir = filepath.Join(os.TempDir(), "aituberflow-audio")

func ensureAudioDir() error { return os.MkdirAll(ttsAudioDir, 0o755) }

func saveAudioFile(prefix string, data []byte) (string, string, error) {
	if err := ensureAudioDir(); err != nil {
		return "", "", err
	}
	filename := fmt.Sprintf("%s_%s.wav", prefix, uuid.New().String()[:8])
	path := filepath.Join(ttsAudioDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", err
	}
	return path, filename, nil
}

// voicevoxTTSNode synthesizes speech via a local VOICEVOX engine's
// two-step audio_query + synthesis HTTP API. Grounded on
// original_source/plugins/voicevox-tts/node.py.
type voicevoxTTSNode struct {
	workflow.BaseNode
	host                                          string
	speaker                                       int
	speedScale, pitchScale, volumeScale           float64
	client                                        *http.Client
}

func newVoicevoxTTSNode() workflow.NodeInterface {
	return &voicevoxTTSNode{host: "http://localhost:50021", speaker: 1, speedScale: 1, volumeScale: 1}
}

func (n *voicevoxTTSNode) Setup(_ context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.host = stringConfig(cfg, "host", "http://localhost:50021")
	n.speaker = intConfig(cfg, "speaker", 1)
	n.speedScale = floatConfig(cfg, "speedScale", 1.0)
	n.pitchScale = floatConfig(cfg, "pitchScale", 0.0)
	n.volumeScale = floatConfig(cfg, "volumeScale", 1.0)
	n.client = &http.Client{Timeout: 60 * time.Second}
	if err := ensureAudioDir(); err != nil {
		nc.Log("Cannot prepare audio output directory: "+err.Error(), "error")
	}
	nc.Log("VOICEVOX configured: "+n.host, "info")
	return nil
}

func (n *voicevoxTTSNode) Execute(ctx context.Context, inputs workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	text := stringInput(inputs["text"])
	if text == "" {
		nc.Log("No text provided for TTS", "warning")
		return workflow.Ports{"audioUrl": "", "duration": 0}, nil
	}

	nc.Log("Generating speech: "+truncate(text, 30)+"...", "info")

	queryURL := fmt.Sprintf("%s/audio_query?%s", n.host, url.Values{
		"text": {text}, "speaker": {fmt.Sprint(n.speaker)},
	}.Encode())
	queryReq, err := http.NewRequestWithContext(ctx, http.MethodPost, queryURL, nil)
	if err != nil {
		return nil, err
	}
	queryResp, err := n.client.Do(queryReq)
	if err != nil {
		nc.Log("Cannot connect to VOICEVOX at "+n.host+": "+err.Error(), "error")
		return workflow.Ports{"audioUrl": "", "duration": 0}, nil
	}
	defer queryResp.Body.Close()
	if queryResp.StatusCode != http.StatusOK {
		nc.Log("VOICEVOX audio_query returned status "+fmt.Sprint(queryResp.StatusCode), "error")
		return workflow.Ports{"audioUrl": "", "duration": 0}, nil
	}

	var query map[string]interface{}
	if err := json.NewDecoder(queryResp.Body).Decode(&query); err != nil {
		return nil, err
	}
	query["speedScale"] = n.speedScale
	query["pitchScale"] = n.pitchScale
	query["volumeScale"] = n.volumeScale

	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	synthURL := fmt.Sprintf("%s/synthesis?%s", n.host, url.Values{"speaker": {fmt.Sprint(n.speaker)}}.Encode())
	synthReq, err := http.NewRequestWithContext(ctx, http.MethodPost, synthURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	synthReq.Header.Set("Content-Type", "application/json")
	synthResp, err := n.client.Do(synthReq)
	if err != nil {
		nc.Log("VOICEVOX synthesis failed: "+err.Error(), "error")
		return workflow.Ports{"audioUrl": "", "duration": 0}, nil
	}
	defer synthResp.Body.Close()

	audio, err := io.ReadAll(synthResp.Body)
	if err != nil {
		return nil, err
	}
	path, filename, err := saveAudioFile("voicevox", audio)
	if err != nil {
		nc.Log("Failed to write audio file: "+err.Error(), "error")
		return workflow.Ports{"audioUrl": "", "duration": 0}, nil
	}

	duration := wavDurationSeconds(audio)
	nc.Emit(workflow.Event{Type: "audio.generated", Payload: map[string]interface{}{
		"audio": path, "audioUrl": path, "filename": filename, "duration": duration, "text": text,
	}})
	return workflow.Ports{"audio": path, "audioUrl": path, "filename": filename, "duration": duration}, nil
}

// coeiroinkTTSNode synthesizes via COEIROINK's estimate+synthesis API.
// Grounded on original_source/plugins/coeiroink-tts/node.py.
type coeiroinkTTSNode struct {
	workflow.BaseNode
	host        string
	speakerUUID string
	styleID     int
	client      *http.Client
}

func newCoeiroinkTTSNode() workflow.NodeInterface {
	return &coeiroinkTTSNode{host: "http://localhost:50032"}
}

func (n *coeiroinkTTSNode) Setup(_ context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.host = stringConfig(cfg, "host", "http://localhost:50032")
	n.speakerUUID = stringConfig(cfg, "speakerUuid", "")
	n.styleID = intConfig(cfg, "styleId", 0)
	n.client = &http.Client{Timeout: 60 * time.Second}
	_ = ensureAudioDir()
	if n.speakerUUID == "" {
		nc.Log("Speaker UUID not configured", "warning")
	} else {
		nc.Log("COEIROINK configured: "+n.host, "info")
	}
	return nil
}

func (n *coeiroinkTTSNode) Execute(ctx context.Context, inputs workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	text := stringInput(inputs["text"])
	if text == "" || n.speakerUUID == "" {
		nc.Log("No text or speaker configured for COEIROINK", "warning")
		return workflow.Ports{"audioUrl": "", "duration": 0}, nil
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"speakerUuid": n.speakerUUID, "styleId": n.styleID, "text": text,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.host+"/v1/synthesis", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		nc.Log("Cannot connect to COEIROINK at "+n.host+": "+err.Error(), "error")
		return workflow.Ports{"audioUrl": "", "duration": 0}, nil
	}
	defer resp.Body.Close()
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	path, filename, err := saveAudioFile("coeiroink", audio)
	if err != nil {
		return workflow.Ports{"audioUrl": "", "duration": 0}, nil
	}
	duration := wavDurationSeconds(audio)
	nc.Emit(workflow.Event{Type: "audio.generated", Payload: map[string]interface{}{
		"audio": path, "audioUrl": path, "filename": filename, "duration": duration, "text": text,
	}})
	return workflow.Ports{"audio": path, "audioUrl": path, "filename": filename, "duration": duration}, nil
}

// sbv2TTSNode synthesizes via a Style-Bert-VITS2 server's /voice
// endpoint. Grounded on original_source/plugins/sbv2-tts/node.py,
// including its demoMode config flag.
type sbv2TTSNode struct {
	workflow.BaseNode
	host      string
	modelName string
	speakerID int
	style     string
	demoMode  bool
	client    *http.Client
}

func newSBV2TTSNode() workflow.NodeInterface {
	return &sbv2TTSNode{host: "http://localhost:5000", style: "Neutral"}
}

func (n *sbv2TTSNode) Setup(_ context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.host = stringConfig(cfg, "host", "http://localhost:5000")
	n.modelName = stringConfig(cfg, "modelName", "")
	n.speakerID = intConfig(cfg, "speakerId", 0)
	n.style = stringConfig(cfg, "style", "Neutral")
	n.demoMode = boolConfig(cfg, "demoMode", false)
	n.client = &http.Client{Timeout: 60 * time.Second}
	_ = ensureAudioDir()
	nc.Log("Style-Bert-VITS2 configured: "+n.host, "info")
	return nil
}

func (n *sbv2TTSNode) Execute(ctx context.Context, inputs workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	text := stringInput(inputs["text"])
	if text == "" {
		nc.Log("No text provided for TTS", "warning")
		return workflow.Ports{"audioUrl": "", "duration": 0}, nil
	}
	if n.demoMode {
		nc.Log("[デモモード] Style-Bert-VITS2 synthesis skipped", "info")
		return workflow.Ports{"audioUrl": "", "duration": 0}, nil
	}

	values := url.Values{"text": {text}, "model_name": {n.modelName}, "speaker_id": {fmt.Sprint(n.speakerID)}, "style": {n.style}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.host+"/voice?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := n.client.Do(req)
	if err != nil {
		nc.Log("Cannot connect to Style-Bert-VITS2 at "+n.host+": "+err.Error(), "error")
		return workflow.Ports{"audioUrl": "", "duration": 0}, nil
	}
	defer resp.Body.Close()
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	path, filename, err := saveAudioFile("sbv2", audio)
	if err != nil {
		return workflow.Ports{"audioUrl": "", "duration": 0}, nil
	}
	duration := wavDurationSeconds(audio)
	nc.Emit(workflow.Event{Type: "audio.generated", Payload: map[string]interface{}{
		"audio": path, "audioUrl": path, "filename": filename, "duration": duration, "text": text,
	}})
	return workflow.Ports{"audio": path, "audioUrl": path, "filename": filename, "duration": duration}, nil
}

// wavDurationSeconds reads a canonical WAV header's byte rate and data
// size to estimate playback duration, the Go equivalent of
// voicevox-tts/node.py's _get_wav_duration (which uses the stdlib
// wave module).
func wavDurationSeconds(data []byte) float64 {
	if len(data) < 44 {
		return 0
	}
	byteRate := uint32(data[28]) | uint32(data[29])<<8 | uint32(data[30])<<16 | uint32(data[31])<<24
	dataSize := uint32(data[40]) | uint32(data[41])<<8 | uint32(data[42])<<16 | uint32(data[43])<<24
	if byteRate == 0 {
		return 0
	}
	return float64(dataSize) / float64(byteRate)
}
