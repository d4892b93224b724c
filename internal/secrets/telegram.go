package secrets

import (
	"context"
	"errors"

	"github.com/Checker-Finance/capitol-watch/pkg/config"
)

// TelegramCredentials is the content of the Telegram secret.
type TelegramCredentials struct {
	BotToken string
	ChatID   string
}

// ParseTelegram reads bot_token and chat_id; at least one must be present.
func ParseTelegram(raw map[string]string) (TelegramCredentials, error) {
	creds := TelegramCredentials{BotToken: raw["bot_token"], ChatID: raw["chat_id"]}
	if creds.BotToken == "" && creds.ChatID == "" {
		return creds, errors.New("secret has neither bot_token nor chat_id")
	}
	return creds, nil
}

// FillTelegram completes missing Telegram settings in cfg from the secret
// named by cfg.TelegramSecretName. Values already set in the environment win.
func FillTelegram(ctx context.Context, cfg *config.Config, r *Resolver[TelegramCredentials]) error {
	if cfg.TelegramSecretName == "" || cfg.TelegramEnabled() {
		return nil
	}

	creds, err := r.Resolve(ctx, cfg.TelegramSecretName, ParseTelegram)
	if err != nil {
		return err
	}
	if cfg.TelegramBotToken == "" {
		cfg.TelegramBotToken = creds.BotToken
	}
	if cfg.TelegramChatID == "" {
		cfg.TelegramChatID = creds.ChatID
	}
	return nil
}
