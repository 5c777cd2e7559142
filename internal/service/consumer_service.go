package service

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"ai-digest-bot/internal/dto"
	"ai-digest-bot/internal/mapper"
	"ai-digest-bot/internal/pkg/logger"
	"ai-digest-bot/internal/repository/memory"
	"ai-digest-bot/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const consumerModule = "ConsumerService"

// messageDedupTTL covers the gateway's redelivery window.
const messageDedupTTL = 10 * time.Minute

// Replier sends a conversational reply back to its channel.
type Replier interface {
	Reply(ctx context.Context, reply events.ChatReply) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
	// Wait blocks until every run started by Consume has finished.
	Wait()
}

type consumerService struct {
	pubSub  *gochannel.GoChannel
	digest  IDigestService
	chat    IChatService
	replier Replier
	mapper  *mapper.ChatMapper
	dedup   *memory.MessageDedupRepository
	logger  logger.ILogger
	runs    sync.WaitGroup
}

// NewConsumerService runs every trigger from the bus as its own unit of
// work. chat and replier may be nil when conversational mode is off.
func NewConsumerService(
	pubSub *gochannel.GoChannel,
	digest IDigestService,
	chat IChatService,
	replier Replier,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:  pubSub,
		digest:  digest,
		chat:    chat,
		replier: replier,
		mapper:  mapper.NewChatMapper(),
		dedup:   memory.NewMessageDedupRepository(messageDedupTTL),
		logger:  log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	ticks, err := cs.pubSub.Subscribe(ctx, TopicPipelineTick)
	if err != nil {
		return err
	}
	go cs.loop(ctx, ticks, cs.processTick)

	if cs.chat != nil {
		messages, err := cs.pubSub.Subscribe(ctx, TopicChatMessage)
		if err != nil {
			return err
		}
		go cs.loop(ctx, messages, cs.processChat)
	}
	return nil
}

func (cs *consumerService) Wait() {
	cs.runs.Wait()
}

// loop acks before dispatching so the next trigger is not held back by a
// slow run. Runs are never redelivered.
func (cs *consumerService) loop(ctx context.Context, messages <-chan *message.Message, handle func(context.Context, *message.Message)) {
	for msg := range messages {
		msg.Ack()
		cs.runs.Add(1)
		go func(msg *message.Message) {
			defer cs.runs.Done()
			defer func() {
				if r := recover(); r != nil {
					cs.logger.Error(consumerModule, "Run panicked", map[string]interface{}{
						"message_id": msg.UUID,
						"panic":      fmt.Sprint(r),
						"stack":      string(debug.Stack()),
					})
				}
			}()
			handle(ctx, msg)
		}(msg)
	}
}

func (cs *consumerService) processTick(ctx context.Context, msg *message.Message) {
	var tick TickMessage
	if err := json.Unmarshal(msg.Payload, &tick); err != nil {
		cs.logger.Error(consumerModule, "Invalid tick payload", map[string]interface{}{"error": err.Error()})
		return
	}

	// Errors are logged and recorded by the digest service; the schedule
	// simply continues.
	_, _ = cs.digest.Run(ctx, tick.Pipeline, tick.Trigger, dto.RunPipelineRequest{})
}

func (cs *consumerService) processChat(ctx context.Context, msg *message.Message) {
	var inbound dto.InboundMessage
	if err := json.Unmarshal(msg.Payload, &inbound); err != nil {
		cs.logger.Error(consumerModule, "Invalid chat payload", map[string]interface{}{"error": err.Error()})
		return
	}
	if !cs.dedup.FirstSeen(inbound.MessageId) {
		cs.logger.Debug(consumerModule, "Duplicate chat message dropped", map[string]interface{}{"message_id": inbound.MessageId})
		return
	}

	reply := cs.chat.HandleMessage(ctx, inbound)
	out, ok := cs.mapper.ReplyToEvent(reply, inbound.MessageId)
	if !ok || cs.replier == nil {
		return
	}
	if err := cs.replier.Reply(ctx, out); err != nil {
		cs.logger.Warn(consumerModule, "Failed to send reply", map[string]interface{}{
			"channel_id": inbound.ChannelId, "kind": reply.Kind, "error": err.Error(),
		})
	}
}
