package cad

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cae-assist/cae-cli/pkg/logger"
	"github.com/cae-assist/cae-cli/pkg/utils"
)

// BridgeConfig controls how the client reaches the bridge process.
type BridgeConfig struct {
	// Addr is the base URL of the bridge, e.g. "http://localhost:9875".
	Addr string

	// Timeout bounds each individual HTTP call.
	Timeout time.Duration

	// ConnectRetries is how many times Connect re-pings an unreachable
	// bridge before giving up.
	ConnectRetries int

	// Backoff spaces out the Connect retries. Defaults to exponential
	// with jitter.
	Backoff utils.BackoffStrategy
}

// Bridge is an HTTP client for the CAD bridge server. The bridge runs
// inside the CAD application and exposes document operations as JSON
// endpoints.
type Bridge struct {
	addr    string
	client  *http.Client
	retries int
	backoff utils.BackoffStrategy

	mu        sync.Mutex
	connected bool
	docOpen   bool
}

// NewBridge builds a client from cfg, filling in defaults for zero
// fields. It does not touch the network; call Connect first.
func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.Addr == "" {
		cfg.Addr = "http://localhost:9875"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ConnectRetries <= 0 {
		cfg.ConnectRetries = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = utils.NewExponentialBackoff(500*time.Millisecond, 5*time.Second, 2.0, true)
	}
	return &Bridge{
		addr:    cfg.Addr,
		client:  &http.Client{Timeout: cfg.Timeout},
		retries: cfg.ConnectRetries,
		backoff: cfg.Backoff,
	}
}

type pingReply struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// Connect pings the bridge until it answers OK or the retry budget is
// exhausted. The bridge may still be starting up inside the CAD
// application, so both unreachable and error replies are retried.
func (b *Bridge) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < b.retries; attempt++ {
		if attempt > 0 {
			delay := b.backoff.NextDelay(attempt - 1)
			logger.Debug("bridge unreachable, retrying", "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return fmt.Errorf("connect to bridge at %s: %w", b.addr, ctx.Err())
			case <-time.After(delay):
			}
		}

		var reply pingReply
		if err := b.call(ctx, http.MethodGet, "/ping", nil, &reply); err != nil {
			lastErr = err
			continue
		}

		b.mu.Lock()
		b.connected = true
		b.mu.Unlock()
		logger.Info("connected to CAD bridge", "addr", b.addr, "version", reply.Version)
		return nil
	}
	return fmt.Errorf("connect to bridge at %s: %w", b.addr, lastErr)
}

// Open loads a model file in the CAD application.
func (b *Bridge) Open(ctx context.Context, path string) error {
	b.mu.Lock()
	connected := b.connected
	b.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	req := map[string]any{"path": path}
	var reply struct {
		Name        string `json:"name"`
		ObjectCount int    `json:"object_count"`
	}
	if err := b.call(ctx, http.MethodPost, "/open", req, &reply); err != nil {
		return fmt.Errorf("open document %s: %w", path, err)
	}
	b.mu.Lock()
	b.docOpen = true
	b.mu.Unlock()
	logger.Info("document opened", "name", reply.Name, "objects", reply.ObjectCount)
	return nil
}

// Parameters lists the dimensions the open document exposes.
func (b *Bridge) Parameters(ctx context.Context) ([]Parameter, error) {
	if err := b.requireDocument(); err != nil {
		return nil, err
	}
	var reply struct {
		Parameters []Parameter `json:"parameters"`
	}
	if err := b.call(ctx, http.MethodGet, "/parameters", nil, &reply); err != nil {
		return nil, fmt.Errorf("list parameters: %w", err)
	}
	return reply.Parameters, nil
}

// SetParameter updates one named dimension. An unknown name surfaces as
// *UnknownParameterError.
func (b *Bridge) SetParameter(ctx context.Context, name string, value float64) error {
	if err := b.requireDocument(); err != nil {
		return err
	}
	req := map[string]any{"name": name, "value": value}
	err := b.call(ctx, http.MethodPost, "/set_parameter", req, nil)
	if err != nil {
		var bridgeErr *BridgeError
		if errors.As(err, &bridgeErr) && bridgeErr.Status == http.StatusNotFound {
			return &UnknownParameterError{Name: name}
		}
		return fmt.Errorf("set parameter %s=%g: %w", name, value, err)
	}
	return nil
}

// Rebuild recomputes the document so dependent features pick up the new
// parameter values.
func (b *Bridge) Rebuild(ctx context.Context) error {
	if err := b.requireDocument(); err != nil {
		return err
	}
	if err := b.call(ctx, http.MethodPost, "/recompute", map[string]any{}, nil); err != nil {
		return fmt.Errorf("recompute document: %w", err)
	}
	return nil
}

// Export writes the rebuilt geometry to path. The bridge infers the
// format from the extension (.step, .stl).
func (b *Bridge) Export(ctx context.Context, path string) error {
	if err := b.requireDocument(); err != nil {
		return err
	}
	req := map[string]any{"path": path}
	if err := b.call(ctx, http.MethodPost, "/export", req, nil); err != nil {
		return fmt.Errorf("export to %s: %w", path, err)
	}
	return nil
}

// Close closes the open document, leaving the bridge connection usable.
func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	open := b.connected && b.docOpen
	b.docOpen = false
	b.mu.Unlock()
	if !open {
		return nil
	}
	if err := b.call(ctx, http.MethodPost, "/close", map[string]any{}, nil); err != nil {
		return fmt.Errorf("close document: %w", err)
	}
	return nil
}

func (b *Bridge) requireDocument() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return ErrNotConnected
	}
	if !b.docOpen {
		return ErrNoDocument
	}
	return nil
}

// call performs one JSON round trip. Non-2xx replies are decoded into
// *BridgeError using the bridge's {"error": "..."} envelope.
func (b *Bridge) call(ctx context.Context, method, path string, reqBody, replyOut any) error {
	var body io.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.addr+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error string `json:"error"`
		}
		message := resp.Status
		if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr == nil && envelope.Error != "" {
			message = envelope.Error
		}
		return &BridgeError{Op: method + " " + path, Status: resp.StatusCode, Message: message}
	}

	if replyOut == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(replyOut); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
