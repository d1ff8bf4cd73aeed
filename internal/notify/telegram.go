package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"bookmyfaculty/internal/events"
	"bookmyfaculty/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramChannel pushes booking and cancellation alerts to faculty chats.
// Each provider id maps to a chat id in config; providers without a chat
// are skipped silently.
type TelegramChannel struct {
	bot           *tgbotapi.BotAPI
	providerChats map[int64]int64
	logger        zerolog.Logger
}

func NewTelegramChannel(botToken string, providerChats map[int64]int64, logger *zerolog.Logger) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	var channelLogger zerolog.Logger
	if logger != nil {
		channelLogger = logger.With().Str("component", "telegram_channel").Logger()
	}

	channelLogger.Info().Str("bot", bot.Self.UserName).Msg("telegram channel ready")

	return &TelegramChannel{
		bot:           bot,
		providerChats: providerChats,
		logger:        channelLogger,
	}, nil
}

func (t *TelegramChannel) Name() string { return models.ChannelTelegram }

func (t *TelegramChannel) Deliver(_ context.Context, task models.DeliveryTask) error {
	var payload events.ReservationEventPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		return fmt.Errorf("failed to decode task payload: %w", err)
	}

	chatID, ok := t.providerChats[payload.ProviderID]
	if !ok {
		t.logger.Debug().Int64("provider_id", payload.ProviderID).Msg("no telegram chat configured, skipping")
		return nil
	}

	text := formatReservationMessage(task.EventType, payload)
	if text == "" {
		return nil
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func formatReservationMessage(eventType string, p events.ReservationEventPayload) string {
	when := p.StartTime.Format("Mon, 02 Jan 2006 15:04")

	switch eventType {
	case events.EventReservationConfirmed:
		text := fmt.Sprintf("📅 <b>New booking</b>\n\nSlot: %s\nStudent: %d\nReservation: #%d", when, p.StudentID, p.ReservationID)
		if p.Notes != "" {
			text += fmt.Sprintf("\nNotes: %s", p.Notes)
		}
		return text
	case events.EventReservationCancelled:
		return fmt.Sprintf("❌ <b>Booking cancelled</b>\n\nSlot: %s\nStudent: %d\nReservation: #%d\n\nThe slot is open for booking again.", when, p.StudentID, p.ReservationID)
	default:
		return ""
	}
}
