package reporter

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"go-vacancy-pipeline/internal/config"
	"go-vacancy-pipeline/internal/listing"
)

// TelegramReporter pushes a run summary to a private chat after each
// reconciliation. Construction fails soft when no token is configured.
type TelegramReporter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramReporter returns nil (not an error) when no token is set, so
// callers can treat notification as optional.
func NewTelegramReporter(cfg *config.Config) (*TelegramReporter, error) {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &TelegramReporter{
		bot:    bot,
		chatID: cfg.TelegramChatID,
	}, nil
}

func (t *TelegramReporter) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "HTML" //use HTML for bold/italic
	_, err := t.bot.Send(msg)
	return err
}

// SendSummary reports the headline numbers of one finished run.
func (t *TelegramReporter) SendSummary(info listing.Transparency) error {
	text := fmt.Sprintf(
		"✅ <b>Vacancy run complete</b> (%s)\n"+
			"📋 Active: %d (applied: %d)\n"+
			"🗃 Archived: %d\n"+
			"🔗 Updates merged: %d\n"+
			"⊘ Rejected: %d hindi, %d ineligible",
		info.RunMode,
		info.TotalListings,
		info.AppliedCount,
		info.ArchivedCount,
		info.MergedUpdates,
		info.RejectedHindi,
		info.RejectedIneligible,
	)
	return t.SendMessage(text)
}

func (t *TelegramReporter) SendError(errReq error) error {
	text := fmt.Sprintf("⚠️ <b>Vacancy pipeline error</b>:\n%v", errReq)
	return t.SendMessage(text)
}
