package plugins

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/aituberflow/aituberflow-go/workflow"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// chatMessage is the wire shape every chat source node emits on its
// "message.received" bus event and returns on its "message" output
// port, matching original_source's per-platform msg dict fields.
type chatMessage struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	Author        string `json:"author"`
	AuthorID      string `json:"authorId"`
	Timestamp     string `json:"timestamp"`
	IsMod         bool   `json:"isMod"`
	IsSubscriber  bool   `json:"isSubscriber"`
	IsBroadcaster bool   `json:"isBroadcaster"`
}

func (m chatMessage) asPorts() workflow.Ports {
	return workflow.Ports{
		"message": map[string]interface{}{
			"id": m.ID, "text": m.Text, "author": m.Author, "authorId": m.AuthorID,
			"timestamp": m.Timestamp, "isMod": m.IsMod, "isSubscriber": m.IsSubscriber,
			"isBroadcaster": m.IsBroadcaster,
		},
		"author": m.Author,
		"text":   m.Text,
	}
}

var twitchBots = map[string]bool{"nightbot": true, "streamelements": true, "moobot": true, "streamlabs": true}
var twitchPrivmsg = regexp.MustCompile(`(?:@([^ ]+) )?:([^!]+)![^@]+@[^ ]+ PRIVMSG (#[^ ]+) :(.+)`)

// twitchChatNode connects to Twitch IRC anonymously (no token needed
// to read chat) and emits one "message.received" event per chat line.
// Grounded on original_source/plugins/twitch-chat/node.py's IRC
// handshake and PRIVMSG parsing, reimplemented over net.Conn and a
// background goroutine instead of asyncio + raw sockets.
type twitchChatNode struct {
	workflow.BaseNode
	channel    string
	oauthToken string
	filterBots bool

	conn net.Conn
	nc   *workflow.NodeContext
}

func newTwitchChatNode() workflow.NodeInterface {
	return &twitchChatNode{filterBots: true}
}

func (n *twitchChatNode) Setup(ctx context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.channel = strings.ToLower(strings.TrimSpace(stringConfig(cfg, "channel", "")))
	n.oauthToken = stringConfig(cfg, "oauthToken", "")
	n.filterBots = boolConfig(cfg, "filterBots", true)
	n.nc = nc

	if n.channel == "" {
		nc.Log("Channel name not configured", "error")
		return nil
	}
	if !strings.HasPrefix(n.channel, "#") {
		n.channel = "#" + n.channel
	}

	conn, err := net.DialTimeout("tcp", "irc.chat.twitch.tv:6667", 10*time.Second)
	if err != nil {
		nc.Log("Failed to connect to Twitch: "+err.Error(), "error")
		return nil
	}
	n.conn = conn

	if n.oauthToken != "" {
		fmt.Fprintf(conn, "PASS oauth:%s\r\n", n.oauthToken)
	}
	fmt.Fprint(conn, "NICK justinfan12345\r\n")
	fmt.Fprintf(conn, "JOIN %s\r\n", n.channel)
	fmt.Fprint(conn, "CAP REQ :twitch.tv/tags twitch.tv/commands\r\n")

	nc.SpawnBackground(ctx, n.listen)
	nc.Log("Connected to Twitch chat: "+n.channel, "info")
	return nil
}

func (n *twitchChatNode) listen(ctx context.Context) {
	scanner := bufio.NewScanner(n.conn)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for scanner.Scan() {
			n.processLine(scanner.Text())
		}
	}()
	select {
	case <-ctx.Done():
		n.conn.Close()
		<-done
	case <-done:
	}
}

func (n *twitchChatNode) processLine(line string) {
	if line == "" {
		return
	}
	if strings.HasPrefix(line, "PING") {
		fmt.Fprintf(n.conn, "PONG%s\r\n", strings.TrimPrefix(line, "PING"))
		return
	}
	m := twitchPrivmsg.FindStringSubmatch(line)
	if m == nil {
		return
	}
	tags := parseIRCTags(m[1])
	username := m[2]
	text := m[4]
	if n.filterBots && twitchBots[strings.ToLower(username)] {
		return
	}
	msg := chatMessage{
		ID: tags["id"], Text: text, Author: firstNonEmpty(tags["display-name"], username),
		AuthorID: tags["user-id"], Timestamp: nowStamp(),
		IsMod: tags["mod"] == "1", IsSubscriber: tags["subscriber"] == "1",
		IsBroadcaster: strings.Contains(tags["badges"], "broadcaster"),
	}
	n.nc.Emit(workflow.Event{Type: "message.received", Payload: map[string]interface{}{"message": msg}})
	n.nc.Log(msg.Author+": "+truncate(msg.Text, 50), "info")
}

func parseIRCTags(raw string) map[string]string {
	tags := map[string]string{}
	for _, tag := range strings.Split(raw, ";") {
		if k, v, ok := strings.Cut(tag, "="); ok {
			tags[k] = v
		}
	}
	return tags
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func nowStamp() string { return time.Now().UTC().Format(time.RFC3339) }

// Execute is never called by either runner for a source node (spec
// §4.7: sources publish through Setup's background listener, not a
// Kahn/downstream invocation); kept only to satisfy NodeInterface.
func (n *twitchChatNode) Execute(_ context.Context, _ workflow.Ports, _ *workflow.NodeContext) (workflow.Ports, error) {
	return workflow.Ports{}, nil
}

func (n *twitchChatNode) Teardown(context.Context) error {
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

// youtubeChatNode polls the YouTube Data API v3 live chat endpoint in
// a background goroutine and emits one "message.received" event per
// chat item. Grounded on original_source/plugins/youtube-chat/node.py's
// poll-and-buffer design, swapping its httpx client for the generated
// google.golang.org/api/youtube/v3 client already in go.mod; redesigned
// (like timerNode) from a per-invocation poll into a real streaming
// source, since "youtube-chat" is a source node type (spec §4.7) whose
// Execute a runner never calls.
type youtubeChatNode struct {
	workflow.BaseNode
	videoID     string
	apiKey      string
	filterBots  bool
	liveChatID  string
	nextPageTok string
	svc         *youtube.Service
}

func newYoutubeChatNode() workflow.NodeInterface { return &youtubeChatNode{filterBots: true} }

func (n *youtubeChatNode) Setup(ctx context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.videoID = stringConfig(cfg, "videoId", "")
	n.apiKey = stringConfig(cfg, "apiKey", "")
	n.filterBots = boolConfig(cfg, "filterBots", true)

	if n.apiKey == "" || n.videoID == "" {
		nc.Log("YouTube API key or video id not configured, operating in demo mode", "warning")
		return nil
	}

	svc, err := youtube.NewService(ctx, option.WithAPIKey(n.apiKey))
	if err != nil {
		nc.Log("Failed to create YouTube client: "+err.Error(), "error")
		return nil
	}
	n.svc = svc

	videos, err := svc.Videos.List([]string{"liveStreamingDetails"}).Id(n.videoID).Do()
	if err != nil || len(videos.Items) == 0 || videos.Items[0].LiveStreamingDetails == nil {
		nc.Log("Video is not live or liveChatId unavailable", "error")
		n.svc = nil
		return nil
	}
	n.liveChatID = videos.Items[0].LiveStreamingDetails.ActiveLiveChatId
	nc.Log("Connected to YouTube live chat for video "+n.videoID, "info")
	nc.SpawnBackground(ctx, func(bgCtx context.Context) { n.poll(bgCtx, nc) })
	return nil
}

func (n *youtubeChatNode) poll(ctx context.Context, nc *workflow.NodeContext) {
	interval := 5 * time.Second
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		call := n.svc.LiveChatMessages.List(n.liveChatID, []string{"snippet", "authorDetails"})
		if n.nextPageTok != "" {
			call = call.PageToken(n.nextPageTok)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			nc.Log("YouTube poll failed: "+err.Error(), "error")
			timer.Reset(interval)
			continue
		}
		n.nextPageTok = resp.NextPageToken
		if resp.PollingIntervalMillis > 0 {
			interval = time.Duration(resp.PollingIntervalMillis) * time.Millisecond
		}

		for _, item := range resp.Items {
			if item.Snippet == nil || item.AuthorDetails == nil {
				continue
			}
			msg := chatMessage{
				ID: item.Id, Text: item.Snippet.DisplayMessage,
				Author: item.AuthorDetails.DisplayName, AuthorID: item.AuthorDetails.ChannelId,
				Timestamp: item.Snippet.PublishedAt, IsMod: item.AuthorDetails.IsChatModerator,
				IsSubscriber: item.AuthorDetails.IsChatSponsor, IsBroadcaster: item.AuthorDetails.IsChatOwner,
			}
			nc.Emit(workflow.Event{Type: "message.received", Payload: map[string]interface{}{"message": msg}})
		}
		timer.Reset(interval)
	}
}

// Execute is never called by either runner for a source node (spec
// §4.7); kept only to satisfy NodeInterface.
func (n *youtubeChatNode) Execute(_ context.Context, _ workflow.Ports, _ *workflow.NodeContext) (workflow.Ports, error) {
	return workflow.Ports{}, nil
}

// discordChatNode is a documented demo-mode stub: go.mod carries no
// Discord gateway client, so, in the original's own demo-mode
// convention (see openai-llm/node.py's API-key-absent fallback), it
// never connects and never emits; Setup logs a warning when no bot
// token is configured. Execute is unreachable for a source node
// (spec §4.7) and kept only to satisfy NodeInterface.
type discordChatNode struct {
	workflow.BaseNode
	channelIDs []string
	filterBots bool
}

func newDiscordChatNode() workflow.NodeInterface { return &discordChatNode{filterBots: true} }

func (n *discordChatNode) Setup(_ context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.filterBots = boolConfig(cfg, "filterBots", true)
	if stringConfig(cfg, "botToken", "") == "" {
		nc.Log("Discord bot token not configured, operating in demo mode", "warning")
	}
	return nil
}

func (n *discordChatNode) Execute(_ context.Context, _ workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	nc.Log("[デモモード] Discord is not connected in this build", "info")
	return workflow.Ports{"message": nil, "author": "", "text": ""}, nil
}
