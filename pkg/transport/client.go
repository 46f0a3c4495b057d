package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/peering"
)

// MessagesPath is the inbound endpoint every node serves
const MessagesPath = "/messages"

// maxResponseSize bounds the Ack body read from a peer
const maxResponseSize = 64 * 1024

// ErrRejected is returned when the peer answered with a 4xx status. Rejections are not retried.
var ErrRejected = errors.New("message rejected by peer")

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides default retry settings
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     5,
	InitialBackoff:  100 * time.Millisecond,
	MaxBackoff:      5 * time.Second,
	BackoffMultiple: 2.0,
}

// IMessageTransport delivers protocol messages to channel partners
type IMessageTransport interface {
	SendMessage(ctx context.Context, to common.Address, m messages.Message) (*messages.Ack, error)
}

// Client handles network communication
type Client struct {
	self        common.Address
	peers       peering.IPeeringDataFetcher
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *zap.Logger
}

// NewClient creates a new transport client
func NewClient(self common.Address, peers peering.IPeeringDataFetcher, logger *zap.Logger) *Client {
	return &Client{
		self:        self,
		peers:       peers,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		retryConfig: DefaultRetryConfig,
		logger:      logger,
	}
}

// WithRetryConfig replaces the retry settings
func (c *Client) WithRetryConfig(cfg RetryConfig) *Client {
	c.retryConfig = cfg
	return c
}

// buildRequestURL constructs a full URL for a peer endpoint
func buildRequestURL(socketAddress, path string) string {
	return fmt.Sprintf("%s%s", socketAddress, path)
}

// SendMessage encodes m, posts it to the peer registered for to and returns the peer's Ack.
// Network failures and 5xx answers are retried with exponential backoff.
func (c *Client) SendMessage(ctx context.Context, to common.Address, m messages.Message) (*messages.Ack, error) {
	peer, err := c.peers.GetPeer(ctx, to)
	if err != nil {
		return nil, err
	}

	data, err := messages.Encode(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", m.Kind(), err)
	}

	url := buildRequestURL(peer.SocketAddress, MessagesPath)
	backoff := c.retryConfig.InitialBackoff
	var lastErr error
	for attempt := 0; attempt < c.retryConfig.MaxAttempts; attempt++ {
		ack, retry, err := c.post(ctx, url, data)
		if err == nil {
			c.logger.Sugar().Debugw("Delivered message",
				"kind", m.Kind(), "to", to.Hex(), "attempt", attempt+1)
			return ack, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		c.logger.Sugar().Warnw("Message delivery failed",
			"kind", m.Kind(), "to", to.Hex(), "attempt", attempt+1, "error", err)

		if attempt < c.retryConfig.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * c.retryConfig.BackoffMultiple)
			if backoff > c.retryConfig.MaxBackoff {
				backoff = c.retryConfig.MaxBackoff
			}
		}
	}

	return nil, errors.Wrapf(lastErr, "failed to send %s to %s after %d attempts",
		m.Kind(), to.Hex(), c.retryConfig.MaxAttempts)
}

// post performs one delivery attempt and reports whether a failure is worth retrying
func (c *Client) post(ctx context.Context, url string, data []byte) (*messages.Ack, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, true, errors.Wrap(err, "failed to read response")
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("peer returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	case resp.StatusCode >= 400:
		return nil, false, fmt.Errorf("%w: %d: %s", ErrRejected, resp.StatusCode, bytes.TrimSpace(body))
	}

	decoded, err := messages.Decode(body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode ack: %w", err)
	}
	ack, ok := decoded.(*messages.Ack)
	if !ok {
		return nil, false, fmt.Errorf("expected ack, got %s", decoded.Kind())
	}
	return ack, false, nil
}

var _ IMessageTransport = (*Client)(nil)
