package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	port "myrhythm/internal/ports/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var ErrNoChat = errors.New("no telegram chat for user")

// sender es la parte de *tgbotapi.BotAPI que usamos.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier manda la alarma al chat configurado para cada usuario.
type TelegramNotifier struct {
	bot   sender
	chats map[string]int64
	loc   *time.Location
}

func NewTelegramNotifier(token string, chats map[string]int64, loc *time.Location) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newTelegramNotifier(bot, chats, loc), nil
}

func newTelegramNotifier(bot sender, chats map[string]int64, loc *time.Location) *TelegramNotifier {
	if chats == nil {
		chats = map[string]int64{}
	}
	return &TelegramNotifier{bot: bot, chats: chats, loc: loc}
}

func (n *TelegramNotifier) Notify(ctx context.Context, a port.Alarm) error {
	chatID, ok := n.chats[a.UserID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoChat, a.UserID)
	}
	msg := tgbotapi.NewMessage(chatID, alarmText(a, n.loc))
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
