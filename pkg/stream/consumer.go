// Package stream consumes the bridge's per-address server-sent event feed
// and maps wire event names onto a closed enumeration.
package stream

import (
	"context"
	"time"

	"github.com/r3labs/sse/v2"

	"github.com/tinyland-inc/lumenbridge/pkg/logger"
)

// Kind enumerates the named events the bridge emits. Anything else on the
// wire is dropped.
type Kind string

const (
	KindTransactionReceived Kind = "transaction_received"
	KindAccountCreated      Kind = "account_created"
	KindAccountConfigured   Kind = "account_configured"
	KindExchanged           Kind = "exchanged"
	KindExchangedTimelocked Kind = "exchanged_timelocked"
	KindError               Kind = "error"
)

// wireKinds is the dispatch table from wire names to kinds.
var wireKinds = map[string]Kind{
	"transaction_received": KindTransactionReceived,
	"account_created":      KindAccountCreated,
	"account_configured":   KindAccountConfigured,
	"exchanged":            KindExchanged,
	"exchanged_timelocked": KindExchangedTimelocked,
	"error":                KindError,
}

// Event is one decoded feed notification. Data is the raw payload; only
// some kinds carry one.
type Event struct {
	Kind Kind
	Data []byte
}

// Consumer subscribes to one bridge event stream, identified by the deposit
// address (or memo, for the ledger-native chain).
type Consumer struct {
	client *sse.Client
	stream string
}

func NewConsumer(bifrostURL, streamID string) *Consumer {
	client := sse.NewClient(bifrostURL + "/events")
	// Transport-level drops are noise, not protocol errors: log and let the
	// SSE client's reconnect strategy carry on.
	client.ReconnectNotify = func(err error, next time.Duration) {
		logger.WarnCF("stream", "Event stream connection lost, retrying", map[string]any{
			"stream": streamID,
			"error":  err.Error(),
			"retry":  next.String(),
		})
	}
	return &Consumer{client: client, stream: streamID}
}

// Run blocks, delivering recognized events to handle in arrival order, until
// ctx is canceled or the subscription cannot be kept alive. Handlers run one
// at a time on the subscription goroutine.
func (c *Consumer) Run(ctx context.Context, handle func(Event)) error {
	return c.client.SubscribeWithContext(ctx, c.stream, func(msg *sse.Event) {
		name := string(msg.Event)
		kind, ok := wireKinds[name]
		if !ok {
			if name != "" {
				logger.DebugCF("stream", "Dropping unrecognized event", map[string]any{
					"stream": c.stream,
					"event":  name,
				})
			}
			return
		}
		handle(Event{Kind: kind, Data: msg.Data})
	})
}
