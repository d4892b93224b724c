package utils

import "regexp"

var (
	dsnPasswordRegex = regexp.MustCompile(`(:)([^:@]+)(@)`)
	botPathRegex     = regexp.MustCompile(`/bot[^/]+/`)
)

// MaskDSN hides the password portion of a connection string.
func MaskDSN(dsn string) string {
	return dsnPasswordRegex.ReplaceAllString(dsn, ":***@")
}

// MaskToken keeps the first and last four characters of a credential.
func MaskToken(token string) string {
	if len(token) <= 8 {
		if token == "" {
			return ""
		}
		return "***"
	}
	return token[:4] + "***" + token[len(token)-4:]
}

// MaskBotURL hides the bot token embedded in a Telegram Bot API URL path.
func MaskBotURL(u string) string {
	return botPathRegex.ReplaceAllString(u, "/bot***/")
}
