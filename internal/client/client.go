// Package client talks to a planner server over HTTP and websockets and
// presents it as a remote.Store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
	"github.com/DoyleJ11/frc-plan-sync/internal/types"
)

// HTTPError is a server error with no matching sentinel.
type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	base      string
	http      *http.Client
	log       *zap.Logger
	pingEvery time.Duration
	buffer    int
}

var _ remote.Store = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }
func WithLogger(log *zap.Logger) Option     { return func(c *Client) { c.log = log } }

// WithPingInterval sets how often an open subscription pings the server.
func WithPingInterval(d time.Duration) Option { return func(c *Client) { c.pingEvery = d } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:      strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       zap.NewNop(),
		pingEvery: 20 * time.Second,
		buffer:    16,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sessionPath(code string, parts ...string) string {
	p := "/sessions/" + url.PathEscape(remote.NormalizeCode(code))
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body types.ErrorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Code == "" {
		return &HTTPError{Status: resp.StatusCode, Code: types.CodeInternal, Message: strings.TrimSpace(string(raw))}
	}
	if sentinel := types.ErrorFor(body.Code); sentinel != nil {
		return fmt.Errorf("%s: %w", body.Message, sentinel)
	}
	return &HTTPError{Status: resp.StatusCode, Code: body.Code, Message: body.Message}
}

func (c *Client) GetSession(ctx context.Context, code string) (*remote.Session, error) {
	var sess remote.Session
	if err := c.do(ctx, http.MethodGet, sessionPath(code), nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// CreateSession asks for code, or for a generated one when code is empty.
func (c *Client) CreateSession(ctx context.Context, code string) (*remote.Session, error) {
	var sess remote.Session
	req := types.CreateSessionRequest{Code: remote.NormalizeCode(code)}
	if err := c.do(ctx, http.MethodPost, "/sessions", req, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) IncrementVersion(ctx context.Context, code string) (int64, error) {
	var out types.VersionResponse
	if err := c.do(ctx, http.MethodPost, sessionPath(code, "version"), nil, &out); err != nil {
		return 0, err
	}
	return out.Version, nil
}

func (c *Client) ListDocs(ctx context.Context, code string, coll remote.Collection) ([]remote.Doc, error) {
	var out types.DocsResponse
	if err := c.do(ctx, http.MethodGet, sessionPath(code, string(coll)), nil, &out); err != nil {
		return nil, err
	}
	return out.Docs, nil
}

func (c *Client) SetDoc(ctx context.Context, code string, coll remote.Collection, id string, fields map[string]any) error {
	if fields == nil {
		fields = map[string]any{}
	}
	return c.do(ctx, http.MethodPut, sessionPath(code, string(coll), id), fields, nil)
}

func (c *Client) UpdateDoc(ctx context.Context, code string, coll remote.Collection, id string, partial map[string]any) error {
	if partial == nil {
		partial = map[string]any{}
	}
	return c.do(ctx, http.MethodPatch, sessionPath(code, string(coll), id), partial, nil)
}

func (c *Client) DeleteDoc(ctx context.Context, code string, coll remote.Collection, id string) error {
	return c.do(ctx, http.MethodDelete, sessionPath(code, string(coll), id), nil, nil)
}

func (c *Client) BatchWrite(ctx context.Context, code string, ops []remote.Op) error {
	if len(ops) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, sessionPath(code, "batch"), types.BatchRequest{Ops: ops}, nil)
}

func (c *Client) wsURL(code string, coll remote.Collection) string {
	u := c.base
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	q := url.Values{}
	q.Set("code", remote.NormalizeCode(code))
	q.Set("collection", string(coll))
	return u + "/ws?" + q.Encode()
}

// Subscribe dials the websocket stream for one collection.
func (c *Client) Subscribe(ctx context.Context, code string, coll remote.Collection) (*remote.Subscription, error) {
	if !coll.Subscribable() {
		return nil, remote.ErrBadCollection
	}
	conn, resp, err := websocket.Dial(ctx, c.wsURL(code, coll), &websocket.DialOptions{HTTPClient: c.http})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", code, remote.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("subscribe %s/%s: %w", code, coll, err)
	}
	conn.SetReadLimit(8 << 20)

	subCtx, cancel := context.WithCancel(context.Background())
	sub := remote.NewSubscription(c.buffer, func() {
		cancel()
		conn.Close(websocket.StatusNormalClosure, "bye")
	})

	go c.ping(subCtx, conn)
	go func() {
		defer cancel()
		for {
			_, data, err := conn.Read(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					sub.Fail(streamError(err))
				}
				return
			}
			var msg types.ServerMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				c.log.Warn("bad server message", zap.Error(err))
				continue
			}
			switch msg.Type {
			case types.MsgSnapshot:
				if msg.Snapshot == nil {
					continue
				}
				if !sub.Send(*msg.Snapshot) {
					sub.Fail(remote.ErrDropped)
					conn.Close(websocket.StatusPolicyViolation, "reader fell behind")
					return
				}
			case types.MsgError:
				c.log.Warn("server error on stream", zap.String("error", msg.Error))
			}
		}
	}()
	return sub, nil
}

func (c *Client) ping(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(c.pingEvery)
	defer t.Stop()
	ping := []byte(`{"type":"Ping"}`)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(wctx, websocket.MessageText, ping)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func streamError(err error) error {
	if websocket.CloseStatus(err) == websocket.StatusGoingAway {
		return fmt.Errorf("server closed stream: %w", remote.ErrDropped)
	}
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("stream ended: %w", err)
	}
	return err
}
