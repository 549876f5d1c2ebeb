// Package telegram adapts the Bot API client to the narrow messaging
// surface the core consumes: send/edit/delete plus channel membership
// lookups.
package telegram

import (
	"context"
	"fmt"

	"free-numbers-bot/internal/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Gateway struct {
	bot *tgbotapi.BotAPI
}

func New(token string) (*Gateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api client: %w", err)
	}
	return &Gateway{bot: bot}, nil
}

// Send delivers an HTML message and returns the resulting message id.
func (g *Gateway) Send(ctx context.Context, chatID int64, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	sent, err := g.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send message to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

func (g *Gateway) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML

	if _, err := g.bot.Send(edit); err != nil {
		return fmt.Errorf("failed to edit message %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

func (g *Gateway) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := g.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("failed to delete message %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

// MembershipStatus resolves a user's standing in a channel. Left,
// kicked, and restricted users all report as not a member.
func (g *Gateway) MembershipStatus(ctx context.Context, channel string, userID int64) (model.Membership, error) {
	if err := ctx.Err(); err != nil {
		return model.MembershipNone, err
	}

	member, err := g.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: channel,
			UserID:             userID,
		},
	})
	if err != nil {
		return model.MembershipNone, fmt.Errorf("failed to get chat member %d in %s: %w", userID, channel, err)
	}

	switch member.Status {
	case "creator":
		return model.MembershipOwner, nil
	case "administrator":
		return model.MembershipAdmin, nil
	case "member":
		return model.MembershipMember, nil
	default:
		return model.MembershipNone, nil
	}
}
