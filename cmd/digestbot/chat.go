package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"ai-digest-bot/internal/dto"
	"ai-digest-bot/internal/service"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const localChannel = "local"

func newChatCmd() *cobra.Command {
	var channel string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the chat pipeline from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()
			defer a.container.Shutdown(context.Background())

			if a.container.ChatService == nil {
				return errors.New("chat is disabled (CHAT_ENABLED=false)")
			}
			if a.cfg.Chat.AllowedChannelID != "" {
				channel = a.cfg.Chat.AllowedChannelID
			}
			return chatLoop(cmd.Context(), a.container.ChatService, channel, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&channel, "channel", localChannel, "history key for this session")
	return cmd
}

// chatLoop reads one message per line until EOF.
func chatLoop(ctx context.Context, chat service.IChatService, channel string, in io.Reader, out io.Writer) error {
	prompt := color.New(color.FgCyan, color.Bold)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for {
		prompt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		reply := chat.HandleMessage(ctx, dto.InboundMessage{
			MessageId: uuid.NewString(),
			ChannelId: channel,
			Author:    "terminal",
			Content:   scanner.Text(),
		})

		switch reply.Kind {
		case dto.ReplyKindIgnored:
			continue
		case dto.ReplyKindError:
			color.New(color.FgRed).Fprintln(out, reply.Content)
		case dto.ReplyKindReset, dto.ReplyKindNoText:
			color.New(color.FgYellow).Fprintln(out, reply.Content)
		default:
			fmt.Fprintln(out, reply.Content)
		}
	}
}
