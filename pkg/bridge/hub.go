package bridge

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const topicPrefix = "panel."

// Publisher delivers outbound messages to one panel.
type Publisher interface {
	Publish(ctx context.Context, out Outbound) error
}

type PublisherFunc func(ctx context.Context, out Outbound) error

func (f PublisherFunc) Publish(ctx context.Context, out Outbound) error {
	return f(ctx, out)
}

// Hub fans outbound messages out to connected panels. Every panel connection gets its own
// topic on an in-process watermill pub/sub.
type Hub struct {
	pubSub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

type HubOption func(*Hub)

func WithHubLogger(logger watermill.LoggerAdapter) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

func NewHub(options ...HubOption) *Hub {
	ret := &Hub{
		logger: watermill.NopLogger{},
	}
	for _, o := range options {
		o(ret)
	}
	ret.pubSub = gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            16,
		BlockPublishUntilSubscriberAck: true,
	}, ret.logger)
	return ret
}

func Topic(connectionID string) string {
	return topicPrefix + connectionID
}

// Publisher returns the publisher for one panel connection.
func (h *Hub) Publisher(connectionID string) Publisher {
	return &topicPublisher{publisher: h.pubSub, topic: Topic(connectionID)}
}

// Subscribe returns the outbound messages for a panel connection until ctx is done.
func (h *Hub) Subscribe(ctx context.Context, connectionID string) (<-chan Outbound, error) {
	messages, err := h.pubSub.Subscribe(ctx, Topic(connectionID))
	if err != nil {
		return nil, errors.Wrapf(err, "could not subscribe to %s", Topic(connectionID))
	}

	ret := make(chan Outbound)
	go func() {
		defer close(ret)
		for msg := range messages {
			var out Outbound
			if err := json.Unmarshal(msg.Payload, &out); err != nil {
				log.Error().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable outbound message")
				msg.Ack()
				continue
			}
			select {
			case ret <- out:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return ret, nil
}

func (h *Hub) Close() error {
	return h.pubSub.Close()
}

type topicPublisher struct {
	publisher message.Publisher
	topic     string
}

func (t *topicPublisher) Publish(ctx context.Context, out Outbound) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return errors.Wrap(err, "could not marshal outbound message")
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := t.publisher.Publish(t.topic, msg); err != nil {
		log.Error().Err(err).Str("topic", t.topic).Msg("Failed to publish outbound message")
		return errors.Wrapf(err, "could not publish to %s", t.topic)
	}

	log.Trace().Str("topic", t.topic).Str("type", string(out.Type)).Msg("Published outbound message")
	return nil
}
