package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/gommon/log"
	"uk.co.dudmesh.herald/internal/engine"
)

// DecisionHandler is the engine surface the listener drives.
type DecisionHandler interface {
	HandleDecision(ctx context.Context, d engine.Decision) string
	RunPollCycle(ctx context.Context) error
}

// Listener consumes the bot's update stream and dispatches approver actions.
// Every callback query gets answered with the engine's acknowledgement, so
// the approver is never left without a confirmation or failure notice.
type Listener struct {
	client  *Client
	handler DecisionHandler
}

func NewListener(client *Client, handler DecisionHandler) *Listener {
	return &Listener{client, handler}
}

// Run long-polls Telegram for updates until the context is cancelled. Any
// webhook registered for the bot is removed first; webhook and long-poll
// modes are mutually exclusive on the Telegram side.
func (l *Listener) Run(ctx context.Context) {
	if _, err := l.client.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.Warnf("removing webhook: %v", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := l.client.bot.GetUpdatesChan(u)

	log.Infof("listening for decisions as @%s", l.client.Username())

	for {
		select {
		case <-ctx.Done():
			l.client.bot.StopReceivingUpdates()
			log.Infof("listener stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			l.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes one update. Shared by the long-poll loop and the
// webhook handler.
func (l *Listener) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		l.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand() && update.Message.Command() == "process":
		l.handleProcess(ctx, update.Message)
	}
}

func (l *Listener) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	ack := l.handler.HandleDecision(ctx, engine.Decision{
		Token:   cb.Data,
		ActorID: cb.From.ID,
	})
	if _, err := l.client.bot.Request(tgbotapi.NewCallback(cb.ID, ack)); err != nil {
		log.Warnf("answering callback query: %v", err)
	}
}

// handleProcess triggers a poll cycle on demand via the /process command.
func (l *Listener) handleProcess(ctx context.Context, msg *tgbotapi.Message) {
	reply := "📤 Poll cycle triggered"
	if err := l.handler.RunPollCycle(ctx); err != nil {
		log.Warnf("manual poll cycle: %v", err)
		reply = "⚠️ Poll cycle failed, check the server logs"
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, reply)
	out.ReplyToMessageID = msg.MessageID
	if _, err := l.client.bot.Send(out); err != nil {
		log.Warnf("replying to /process: %v", err)
	}
}
