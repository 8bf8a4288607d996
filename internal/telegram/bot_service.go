// Package telegram connects workers' Telegram chats to the complaint service:
// a bot links chats to accounts and the notifier delivers assignment notices.
package telegram

import (
	"context"
	"errors"
	"strings"

	"cleancity/backend/internal/auth"
	"cleancity/backend/internal/localization"
	"cleancity/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TokenVerifier validates the account token a user pastes into the bot.
type TokenVerifier interface {
	Verify(token string) (models.Actor, error)
}

// BotService is responsible for receiving Telegram updates and linking chats.
type BotService struct {
	BotAPI    *tgbotapi.BotAPI
	Sender    Sender
	Users     UserStore
	Tokens    TokenVerifier
	Localizer *localization.Localizer
	Logger    *zap.Logger
}

// NewBotService creates a new BotService instance.
func NewBotService(token string, users UserStore, tokens TokenVerifier, localizer *localization.Localizer, logger *zap.Logger) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	logger.Info("Authorized on Telegram", zap.String("account", bot.Self.UserName))

	return &BotService{
		BotAPI:    bot,
		Sender:    bot,
		Users:     users,
		Tokens:    tokens,
		Localizer: localizer,
		Logger:    logger,
	}, nil
}

// Notifier returns an assignment notifier sharing the bot's connection.
func (s *BotService) Notifier() *Notifier {
	return &Notifier{Sender: s.Sender, Users: s.Users, Localizer: s.Localizer, Logger: s.Logger}
}

// Run is the main loop for receiving Telegram updates. It returns when ctx ends.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)
	defer s.BotAPI.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes one update. Only commands are meaningful to the bot.
func (s *BotService) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	lang := languageOf(msg, s.Localizer)

	switch msg.Command() {
	case "start":
		s.reply(msg.Chat.ID, s.Localizer.GetString(lang, "start_welcome"))
	case "link":
		s.handleLink(ctx, msg, lang)
	default:
		s.reply(msg.Chat.ID, s.Localizer.GetString(lang, "unknown_command"))
	}
}

func (s *BotService) handleLink(ctx context.Context, msg *tgbotapi.Message, lang string) {
	token := strings.TrimSpace(msg.CommandArguments())
	if token == "" {
		s.reply(msg.Chat.ID, s.Localizer.GetString(lang, "link_usage"))
		return
	}

	actor, err := s.Tokens.Verify(token)
	if err != nil {
		if !errors.Is(err, auth.ErrUnauthenticated) {
			s.Logger.Warn("Token verification failed", zap.Error(err))
		}
		s.reply(msg.Chat.ID, s.Localizer.GetString(lang, "link_invalid"))
		return
	}

	if err := s.Users.LinkTelegram(ctx, actor.ID, actor.Role, msg.Chat.ID, lang); err != nil {
		s.Logger.Error("Failed to link Telegram chat", zap.String("user_id", actor.ID), zap.Error(err))
		s.reply(msg.Chat.ID, s.Localizer.GetString(lang, "link_failed"))
		return
	}
	s.Logger.Info("Linked Telegram chat", zap.String("user_id", actor.ID), zap.Int64("chat_id", msg.Chat.ID))
	s.reply(msg.Chat.ID, s.Localizer.GetString(lang, "link_success"))
}

func (s *BotService) reply(chatID int64, text string) {
	if _, err := s.Sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		s.Logger.Warn("Failed to send Telegram reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func languageOf(msg *tgbotapi.Message, l *localization.Localizer) string {
	if msg.From != nil && l.Supports(msg.From.LanguageCode) {
		return msg.From.LanguageCode
	}
	return localization.DefaultLanguage
}
