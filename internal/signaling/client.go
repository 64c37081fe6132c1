package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-mesh/internal/config"
)

const writeTimeout = 10 * time.Second

var (
	// ErrUnauthorized is returned by Join when the server rejects the credentials.
	ErrUnauthorized = errors.New("signaling: wrong credentials")
	// ErrNotConnected is returned by sends before Connect.
	ErrNotConnected = errors.New("signaling: not connected")
)

// Client joins a session over HTTP and relays messages over a websocket.
type Client struct {
	logger   *zap.Logger
	cfg      config.SignalingConfig
	identity config.IdentityConfig
	http     *http.Client
	dialer   *websocket.Dialer

	mu   sync.Mutex // serializes writes
	conn *websocket.Conn
}

// NewClient creates a client for the configured server.
func NewClient(logger *zap.Logger, cfg *config.Config) *Client {
	return &Client{
		logger:   logger,
		cfg:      cfg.Signaling,
		identity: cfg.Identity,
		http:     &http.Client{Timeout: cfg.Signaling.DialTimeout},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.Signaling.DialTimeout,
		},
	}
}

// LocalID is the identity this client announces.
func (c *Client) LocalID() string {
	return c.identity.Username
}

// Join exchanges the credentials for a session token.
func (c *Client) Join(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": c.identity.Username,
		"password": c.identity.Password,
	})
	if err != nil {
		return "", err
	}

	url := strings.TrimSuffix(c.cfg.HTTPURL, "/") + "/join"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("join request failed: %w", err)
	}
	defer resp.Body.Close()

	token, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read join response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		return strings.TrimSpace(string(token)), nil
	case http.StatusUnauthorized:
		return "", ErrUnauthorized
	default:
		return "", fmt.Errorf("join failed with status %d", resp.StatusCode)
	}
}

// Connect joins, opens the websocket and announces this participant.
func (c *Client) Connect(ctx context.Context) error {
	token, err := c.Join(ctx)
	if err != nil {
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.WebSocketURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.mu.Unlock()

	if err := c.send(Message{Type: TypeHello, Token: token}); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to send hello: %w", err)
	}

	c.logger.Info("Joined signaling session", zap.String("username", c.identity.Username))
	return nil
}

// Run dispatches incoming messages to h until the connection closes or ctx is done.
func (c *Client) Run(ctx context.Context, h Handler) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("signaling read failed: %w", err)
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Ignoring malformed signaling message", zap.Error(err))
			continue
		}
		c.dispatch(msg, h)
	}
}

// SendConnect offers the local description to dst.
func (c *Client) SendConnect(dst, description string) error {
	return c.send(Message{Type: TypeConnect, Dst: dst, Description: description})
}

// SendCandidates relays gathered candidates to dst.
func (c *Client) SendCandidates(dst string, candidates []string) error {
	return c.send(Message{Type: TypeCandidates, Dst: dst, Candidates: candidates})
}

// Close closes the websocket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (c *Client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

func (c *Client) dispatch(msg Message, h Handler) {
	c.logger.Debug("Signaling message received", zap.String("type", msg.Type), zap.String("sender", msg.Sender))

	if msg.Sender == "" && msg.Type != "" {
		c.logger.Warn("Ignoring signaling message without sender", zap.String("type", msg.Type))
		return
	}

	switch msg.Type {
	case TypeHello:
		h.OnHello(msg.Sender)
	case TypeBye:
		h.OnBye(msg.Sender)
	case TypeConnect:
		h.OnConnect(msg.Sender, msg.Description)
	case TypeCandidates:
		h.OnCandidates(msg.Sender, msg.Candidates)
	default:
		c.logger.Warn("Ignoring unknown signaling message", zap.String("type", msg.Type))
	}
}
