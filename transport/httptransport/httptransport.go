// Package httptransport is the production Transport implementation: HTTP
// JSON per spec §6 ("POST /msg" for the message union, "GET /successors",
// "POST /insert"). One shared *http.Client, whose http.Transport keeps a
// keep-alive connection pool per remote host, carries every call, retried
// with the exponential backoff spec §5 specifies — adapted from
// armon-go-chord/grpc.go's rpcOutConn pool/reap pattern and net.go's TCP
// connection pool, translated from a persistent RPC connection pool to
// HTTP's native keep-alive transport.
package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/chordring/chord"
	"github.com/chordring/chord/chorderr"
	"github.com/chordring/chord/logging"
	"github.com/chordring/chord/transport"
)

const (
	maxAttempts  = 3
	baseBackoff  = 100 * time.Millisecond
	clientTimout = 5 * time.Second
)

// Client is an http.Client-backed transport.Transport. One Client instance
// is shared by a node or the coordinator for every outbound call; per-host
// connection reuse is handled by the standard library's http.Transport
// keep-alive pool, so Client itself only needs to retry and back off.
type Client struct {
	http *http.Client
	log  logging.Logger

	mu    sync.RWMutex
	local map[string]transport.Handler
}

// New builds an HTTP transport client. log may be nil, in which case
// failures are discarded rather than logged (matches Nop's zero value).
func New(log logging.Logger) *Client {
	if log == nil {
		log = logging.Nop{}
	}
	return &Client{
		http: &http.Client{
			Timeout: clientTimout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     300 * time.Second,
			},
		},
		log:   log,
		local: make(map[string]transport.Handler),
	}
}

func (c *Client) get(endpoint string) (transport.Handler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.local[endpoint]
	return h, ok
}

// Register implements transport.Transport for endpoints this process itself
// hosts, so Send/GetSuccessors/Insert against our own address skip the wire.
func (c *Client) Register(endpoint string, h transport.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[endpoint] = h
}

// Deregister implements transport.Transport.
func (c *Client) Deregister(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.local, endpoint)
}

// Send implements transport.Transport via POST http://endpoint/msg.
func (c *Client) Send(endpoint string, msg chord.Message) (chord.Message, error) {
	if h, ok := c.get(endpoint); ok {
		return h.HandleMessage(msg), nil
	}
	var reply chord.Message
	err := c.withRetry(endpoint, func() error {
		return c.postJSON(endpoint, "/msg", msg, &reply)
	})
	return reply, err
}

// GetSuccessors implements transport.Transport via GET http://endpoint/successors.
func (c *Client) GetSuccessors(endpoint string) ([]string, error) {
	if h, ok := c.get(endpoint); ok {
		return h.Successors(), nil
	}
	var out struct {
		Successors []string `json:"successors"`
	}
	err := c.withRetry(endpoint, func() error {
		return c.getJSON(endpoint, "/successors", &out)
	})
	return out.Successors, err
}

// Insert implements transport.Transport via POST http://endpoint/insert.
func (c *Client) Insert(endpoint string, records []chord.Record) error {
	if h, ok := c.get(endpoint); ok {
		return h.Insert(records)
	}
	body := struct {
		Records []chord.Record `json:"records"`
	}{Records: records}
	return c.withRetry(endpoint, func() error {
		var reply chord.Message
		return c.postJSON(endpoint, "/insert", body, &reply)
	})
}

// Ping implements transport.Transport; liveness pings are not retried beyond
// the shared retry policy but a failure is reported as "not alive" rather
// than propagated, matching spec §7: transport errors to peers are logged
// and absorbed.
func (c *Client) Ping(endpoint string) bool {
	if _, ok := c.get(endpoint); ok {
		return true
	}
	reply, err := c.Send(endpoint, chord.Message{Kind: chord.KindPing})
	if err != nil {
		c.log.Warn("ping failed", logging.F("endpoint", endpoint), logging.F("err", err.Error()))
		return false
	}
	return reply.Kind == chord.KindPong
}

// withRetry applies spec §5's retry policy: up to 3 attempts with
// exponential backoff of 100*2^k ms, wrapping the final failure as a
// chorderr.ErrTransport.
func (c *Client) withRetry(endpoint string, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(baseBackoff * time.Duration(1<<uint(attempt)))
		}
		if lastErr = op(); lastErr == nil {
			return nil
		}
		c.log.Warn("transport attempt failed",
			logging.F("endpoint", endpoint),
			logging.F("attempt", attempt+1),
			logging.F("err", lastErr.Error()))
	}
	return chorderr.Transport(lastErr)
}

func (c *Client) postJSON(endpoint, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := toURL(endpoint, path)
	resp, err := c.http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeReply(resp, out)
}

func (c *Client) getJSON(endpoint, path string, out any) error {
	url := toURL(endpoint, path)
	resp, err := c.http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeReply(resp, out)
}

func decodeReply(resp *http.Response, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func toURL(endpoint, path string) string {
	if len(endpoint) >= 7 && (endpoint[:7] == "http://" || (len(endpoint) >= 8 && endpoint[:8] == "https://")) {
		return endpoint + path
	}
	return "http://" + endpoint + path
}
