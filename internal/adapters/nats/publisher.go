package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"stitchd-marketplace-service/internal/ports/outbound"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Publisher fans marketplace events out over NATS for the surrounding
// application (feed, notifications). Consumers are out of scope here;
// this adapter only emits.
type Publisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

type PublisherParams struct {
	URL    string
	Logger zerolog.Logger
}

// NewPublisher connects to NATS
func NewPublisher(params PublisherParams) (*Publisher, error) {
	conn, err := nats.Connect(params.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{
		conn:   conn,
		logger: params.Logger.With().Str("component", "nats_publisher").Logger(),
	}, nil
}

// Publish sends an event on a subject
func (p *Publisher) Publish(ctx context.Context, subject string, event outbound.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to NATS: %w", err)
	}

	p.logger.Debug().
		Str("subject", subject).
		Str("event_type", string(event.Type)).
		Str("listing_id", event.ListingID.String()).
		Msg("Event published")
	return nil
}

// Close drains the connection
func (p *Publisher) Close() {
	p.conn.Close()
}
