package feedback

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bft-labs/pushgate/pkg/gateway"
	"github.com/bft-labs/pushgate/pkg/log"
	"github.com/bft-labs/pushgate/pkg/wire"
)

// DefaultReadTimeout bounds the silence between two records.
const DefaultReadTimeout = 30 * time.Second

// Handler receives one inactive token. Returning an error stops Fetch.
type Handler func(rec wire.FeedbackRecord) error

// Client fetches feedback records over a Dialer.
type Client struct {
	dialer      gateway.Dialer
	logger      log.Logger
	readTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *Client) { c.logger = log.OrNoop(l) }
}

// WithReadTimeout overrides DefaultReadTimeout. Zero disables the timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) { c.readTimeout = d }
}

// NewClient creates a feedback client that connects with dialer.
func NewClient(dialer gateway.Dialer, opts ...Option) *Client {
	c := &Client{
		dialer:      dialer,
		logger:      log.NoopLogger{},
		readTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch connects once and hands every record to fn until the service closes
// the stream. It returns the number of records delivered to fn.
//
// A truncated record or a token length other than wire.TokenSize ends the
// fetch with a *wire.ProtocolError; records read before it were delivered.
func (c *Client) Fetch(ctx context.Context, fn Handler) (int, error) {
	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		return 0, &gateway.ConnectionError{Op: "dial", Err: err}
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	r := bufio.NewReader(conn)
	count := 0
	for {
		if c.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		rec, err := wire.ReadFeedback(r)
		if errors.Is(err, io.EOF) {
			c.logger.Info("feedback fetched",
				log.String("addr", c.dialer.Addr()),
				log.Int("tokens", count),
			)
			return count, nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return count, ctxErr
			}
			var perr *wire.ProtocolError
			if errors.As(err, &perr) {
				c.logger.Error("malformed feedback record", log.Err(err), log.Int("after", count))
			}
			return count, fmt.Errorf("feedback: read record: %w", err)
		}

		if err := fn(rec); err != nil {
			return count, fmt.Errorf("feedback: handle record: %w", err)
		}
		count++
	}
}
