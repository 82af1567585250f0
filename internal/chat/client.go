// Package chat is the websocket client for the chat server the bot
// relays notifications into.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"devrelay/internal/aliases"
	"devrelay/internal/logger"
	"devrelay/internal/routing"
)

const (
	writeTimeout     = 10 * time.Second
	maxReconnectWait = 2 * time.Minute
)

type Client struct {
	serverURL string
	loginURL  string
	user      string
	password  string

	store   *routing.Store
	aliases *aliases.Table
	httpc   *http.Client

	// outgoing is drained by a single writer goroutine; gorilla
	// connections do not allow concurrent writers.
	outgoing chan string
}

func NewClient(serverURL, loginURL, user, password string, store *routing.Store, aliasTable *aliases.Table) *Client {
	return &Client{
		serverURL: serverURL,
		loginURL:  loginURL,
		user:      user,
		password:  password,
		store:     store,
		aliases:   aliasTable,
		httpc:     &http.Client{Timeout: 30 * time.Second},
		outgoing:  make(chan string, 64),
	}
}

// Send queues a chat message for room. The empty room targets the
// global context (used for login commands).
func (c *Client) Send(room, text string) {
	select {
	case c.outgoing <- room + "|" + text:
	default:
		logger.Log.Warn("chat send queue full, dropping message",
			zap.String("room", room))
	}
}

// Run connects to the chat server and processes frames until ctx is
// cancelled, reconnecting with exponential backoff on failure.
func (c *Client) Run(ctx context.Context) error {
	wait := time.Second
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		logger.Log.Warn("chat session ended, reconnecting",
			zap.Error(err), zap.Duration("wait", wait))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		if wait *= 2; wait > maxReconnectWait {
			wait = maxReconnectWait
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("chat: dial %s: %w", c.serverURL, err)
	}
	defer func() { _ = conn.Close() }()
	logger.Log.Info("connected to chat server", zap.String("server", c.serverURL))

	// The writer is bound to a per-session context so a dead read loop
	// tears it down before the connection closes.
	sessionCtx, cancel := context.WithCancel(ctx)
	writeDone := make(chan struct{})
	go c.writeLoop(sessionCtx, conn, writeDone)
	defer func() {
		cancel()
		<-writeDone
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("chat: read: %w", err)
		}
		for _, msg := range ParseFrame(string(frame)) {
			c.handle(msg)
		}
	}
}

// wsConn is the slice of *websocket.Conn the write loop needs.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

func (c *Client) writeLoop(ctx context.Context, conn wsConn, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		case text := <-c.outgoing:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
				logger.Log.Error("chat write failed", zap.Error(err))
				// Closing the connection errors the blocked read
				// loop, ending the session so Run reconnects instead
				// of silently dropping every queued send.
				_ = conn.Close()
				return
			}
		}
	}
}

func (c *Client) handle(msg Message) {
	switch msg.Command {
	case "challstr":
		challstr := strings.Join(msg.Args, "|")
		if err := c.login(challstr); err != nil {
			logger.Log.Error("chat login failed", zap.Error(err))
		}
	case "updateuser":
		if len(msg.Args) > 0 && equalName(StripRank(msg.Args[0]), c.user) {
			c.joinAllRooms()
		}
	case "c:":
		// |c:|timestamp|user|message
		if len(msg.Args) >= 3 {
			author := c.aliases.Get(StripRank(msg.Args[1]))
			logger.Log.Debug("chat message",
				zap.String("room", msg.Room),
				zap.String("author", author),
				zap.String("text", strings.Join(msg.Args[2:], "|")))
		}
	case "pm":
		if len(msg.Args) >= 3 {
			author := c.aliases.Get(StripRank(msg.Args[0]))
			logger.Log.Info("private message",
				zap.String("from", author),
				zap.String("text", strings.Join(msg.Args[2:], "|")))
		}
	case "error":
		logger.Log.Warn("chat server error", zap.Strings("args", msg.Args))
	}
}

// login answers the server's challstr by fetching an assertion from
// the login endpoint and presenting it with /trn.
func (c *Client) login(challstr string) error {
	form := url.Values{
		"act":      {"login"},
		"name":     {c.user},
		"pass":     {c.password},
		"challstr": {challstr},
	}
	resp, err := c.httpc.PostForm(c.loginURL, form)
	if err != nil {
		return fmt.Errorf("chat: login request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chat: login request: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("chat: login response: %w", err)
	}

	assertion, err := parseAssertion(body)
	if err != nil {
		return err
	}
	c.Send("", fmt.Sprintf("/trn %s,0,%s", c.user, assertion))
	logger.Log.Info("chat login assertion sent", zap.String("user", c.user))
	return nil
}

// parseAssertion extracts the assertion from a login response, a JSON
// object behind a "]" guard byte.
func parseAssertion(body []byte) (string, error) {
	raw := strings.TrimPrefix(string(body), "]")
	var parsed struct {
		ActionSuccess bool   `json:"actionsuccess"`
		Assertion     string `json:"assertion"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", fmt.Errorf("chat: login response is not valid JSON: %w", err)
	}
	if parsed.Assertion == "" {
		return "", fmt.Errorf("chat: login response carries no assertion")
	}
	if strings.HasPrefix(parsed.Assertion, ";;") {
		return "", fmt.Errorf("chat: login rejected: %s", strings.TrimPrefix(parsed.Assertion, ";;"))
	}
	return parsed.Assertion, nil
}

func (c *Client) joinAllRooms() {
	rooms := c.store.AllRooms()
	for _, room := range rooms {
		c.Send("", "/join "+room)
	}
	logger.Log.Info("joined configured rooms", zap.Int("count", len(rooms)))
}

// equalName compares chat usernames the way the server does: rank and
// letter case are not identity.
func equalName(a, b string) bool {
	return strings.EqualFold(a, b)
}
