package bot

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"uptrack/internal/notify"
)

// ChatLookup finds the Telegram chat linked to an account email.
type ChatLookup interface {
	TelegramChatID(ctx context.Context, email string) (int64, bool, error)
}

// botAPI is the part of tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot pushes notifications to linked Telegram chats and answers the few
// commands needed to link a chat to an account.
type Bot struct {
	api   botAPI
	chats ChatLookup
	log   zerolog.Logger
}

func New(token string, chats ChatLookup, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	b := newBot(api, chats, log)
	b.log.Info().Str("account", api.Self.UserName).Msg("bot authorized")
	return b, nil
}

func newBot(api botAPI, chats ChatLookup, log zerolog.Logger) *Bot {
	return &Bot{
		api:   api,
		chats: chats,
		log:   log.With().Str("component", "telegram").Logger(),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil || update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			continue
		}
		if err := b.handleMessage(update.Message); err != nil {
			b.log.Warn().Err(err).Int64("chat_id", update.Message.Chat.ID).Msg("handle message")
		}
	}
	return nil
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) error {
	if !msg.IsCommand() {
		return b.sendText(msg.Chat.ID, "Send /start to get the chat id for your Uptrack profile.")
	}

	switch msg.Command() {
	case "start", "id":
		text := fmt.Sprintf(
			"Your chat id is <code>%d</code>.\nSave it in your Uptrack profile to receive todo notifications here.",
			msg.Chat.ID,
		)
		return b.sendText(msg.Chat.ID, text)
	case "help":
		return b.sendText(msg.Chat.ID, "/start shows your chat id\n/help shows this message")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. Try /help.")
	}
}

// Send delivers msg to the chat linked to msg.To. Recipients without a linked
// chat are skipped.
func (b *Bot) Send(ctx context.Context, msg notify.Message) error {
	if msg.To == "" {
		return notify.ErrNoRecipient
	}
	chatID, ok, err := b.chats.TelegramChatID(ctx, msg.To)
	if err != nil {
		return fmt.Errorf("lookup telegram chat: %w", err)
	}
	if !ok {
		return nil
	}
	if err := b.sendText(chatID, formatNotification(msg)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	out := tgbotapi.NewMessage(chatID, text)
	out.ParseMode = tgbotapi.ModeHTML
	out.DisableWebPagePreview = true
	_, err := b.api.Send(out)
	return err
}

func formatNotification(msg notify.Message) string {
	var sb strings.Builder
	sb.WriteString("<b>")
	sb.WriteString(html.EscapeString(msg.Subject))
	sb.WriteString("</b>")
	if text := strings.TrimSpace(msg.Text); text != "" {
		sb.WriteString("\n\n")
		sb.WriteString(html.EscapeString(text))
	}
	return sb.String()
}
