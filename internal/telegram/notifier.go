package telegram

import (
	"context"
	"errors"
	"fmt"

	"cleancity/backend/internal/localization"
	"cleancity/backend/internal/models"
	"cleancity/backend/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of the Bot API used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// UserStore reads and links Telegram chats of registered users.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	LinkTelegram(ctx context.Context, userID string, role models.Role, chatID int64, language string) error
}

// Notifier sends assignment notices to workers who linked a Telegram chat.
type Notifier struct {
	Sender    Sender
	Users     UserStore
	Localizer *localization.Localizer
	Logger    *zap.Logger
}

// NotifyAssigned tells the worker about complaint c. Workers without a linked
// chat are skipped.
func (n *Notifier) NotifyAssigned(ctx context.Context, workerID string, c *models.Complaint) error {
	u, err := n.Users.GetUserByID(ctx, workerID)
	if errors.Is(err, storage.ErrNotFound) {
		n.Logger.Debug("Worker has no registry entry, skipping Telegram notice", zap.String("worker_id", workerID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup worker %s: %w", workerID, err)
	}
	if u.TelegramChatID == nil {
		n.Logger.Debug("Worker has no linked Telegram chat", zap.String("worker_id", workerID))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	lang := u.Language
	if lang == "" {
		lang = localization.DefaultLanguage
	}
	place := fmt.Sprintf("%.5f, %.5f", c.Location.Lat, c.Location.Lng)
	if c.Location.Address != nil && *c.Location.Address != "" {
		place = *c.Location.Address
	}
	text := n.Localizer.Format(lang, "assigned_notification",
		n.Localizer.GetString(lang, "priority_"+string(c.Priority)),
		c.SeverityScore,
		c.Description,
		place,
		c.ID,
	)

	msg := tgbotapi.NewMessage(*u.TelegramChatID, text)
	if _, err := n.Sender.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
