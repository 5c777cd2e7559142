package service

import (
	"encoding/json"
	"fmt"

	"ai-digest-bot/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	TopicPipelineTick = "digest.tick"
	TopicChatMessage  = "chat.message"
)

type TickMessage struct {
	Pipeline string `json:"pipeline"`
	Trigger  string `json:"trigger"`
}

// TriggerBus is the in-process queue between triggers (scheduler, chat
// gateway) and the consumer that executes runs.
type TriggerBus struct {
	pubSub *gochannel.GoChannel
}

func NewTriggerBus(pubSub *gochannel.GoChannel) *TriggerBus {
	return &TriggerBus{pubSub: pubSub}
}

func (b *TriggerBus) PublishTick(pipeline, trigger string) error {
	return b.publish(TopicPipelineTick, TickMessage{Pipeline: pipeline, Trigger: trigger})
}

func (b *TriggerBus) PublishMessage(msg dto.InboundMessage) error {
	return b.publish(TopicChatMessage, msg)
}

func (b *TriggerBus) publish(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s trigger: %w", topic, err)
	}
	return b.pubSub.Publish(topic, message.NewMessage(watermill.NewUUID(), payload))
}

func (b *TriggerBus) Close() error {
	return b.pubSub.Close()
}
