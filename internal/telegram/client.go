// Package telegram adapts the Telegram Bot API to the engine's Messenger
// interface and feeds approver decisions back into it.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"uk.co.dudmesh.herald/internal/engine"
	"uk.co.dudmesh.herald/internal/model"
)

type Client struct {
	bot *tgbotapi.BotAPI
}

func New(token string) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating bot client: %w", err)
	}
	return &Client{bot}, nil
}

// Username returns the bot's own @username.
func (c *Client) Username() string {
	return c.bot.Self.UserName
}

// SendApprovalRequest delivers the rendered preview to the approver with
// Approve/Reject inline buttons carrying the decision tokens.
func (c *Client) SendApprovalRequest(ctx context.Context, approverID int64, req *engine.ApprovalRequest) error {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", req.ApproveToken),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", req.RejectToken),
		),
	)

	var msg tgbotapi.Chattable
	switch req.MediaType {
	case model.MediaTypePhoto:
		photo := tgbotapi.NewPhoto(approverID, tgbotapi.FileID(req.MediaRef))
		photo.Caption = req.Text
		photo.ReplyMarkup = markup
		msg = photo
	case model.MediaTypeVideo:
		video := tgbotapi.NewVideo(approverID, tgbotapi.FileID(req.MediaRef))
		video.Caption = req.Text
		video.ReplyMarkup = markup
		msg = video
	default:
		text := tgbotapi.NewMessage(approverID, req.Text)
		text.ReplyMarkup = markup
		msg = text
	}

	if _, err := c.bot.Send(msg); err != nil {
		return deliveryError("sending approval request", err)
	}
	return nil
}

// Publish delivers the final post to the channel. The only button on a
// published message is the optional CTA link.
func (c *Client) Publish(ctx context.Context, post *engine.ChannelPost) error {
	chatID, username := chatTarget(post.Target)

	var markup *tgbotapi.InlineKeyboardMarkup
	if post.CTAURL != "" {
		label := post.CTALabel
		if label == "" {
			label = post.CTAURL
		}
		m := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL(label, post.CTAURL),
			),
		)
		markup = &m
	}

	var msg tgbotapi.Chattable
	switch post.MediaType {
	case model.MediaTypePhoto:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(post.MediaRef))
		photo.ChannelUsername = username
		photo.Caption = post.Text
		if markup != nil {
			photo.ReplyMarkup = *markup
		}
		msg = photo
	case model.MediaTypeVideo:
		video := tgbotapi.NewVideo(chatID, tgbotapi.FileID(post.MediaRef))
		video.ChannelUsername = username
		video.Caption = post.Text
		if markup != nil {
			video.ReplyMarkup = *markup
		}
		msg = video
	default:
		text := tgbotapi.NewMessage(chatID, post.Text)
		text.ChannelUsername = username
		if markup != nil {
			text.ReplyMarkup = *markup
		}
		msg = text
	}

	if _, err := c.bot.Send(msg); err != nil {
		return deliveryError("publishing to channel", err)
	}
	return nil
}

// Notify sends a plain follow-up message to the approver.
func (c *Client) Notify(ctx context.Context, approverID int64, text string) error {
	if _, err := c.bot.Send(tgbotapi.NewMessage(approverID, text)); err != nil {
		return deliveryError("notifying approver", err)
	}
	return nil
}

// chatTarget interprets a channel target as either a numeric chat id or a
// channel username (with or without the leading @).
func chatTarget(target string) (int64, string) {
	if id, err := strconv.ParseInt(target, 10, 64); err == nil {
		return id, ""
	}
	if !strings.HasPrefix(target, "@") {
		return 0, "@" + target
	}
	return 0, target
}

func deliveryError(op string, err error) error {
	permanent := false
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		// bad request or forbidden: the chat id is wrong or the bot is
		// blocked; retrying won't help
		permanent = apiErr.Code == 400 || apiErr.Code == 403
	}
	return &model.DeliveryError{Op: op, Permanent: permanent, Err: err}
}
