package discord

import (
	"fmt"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s\[\]()<>]+`)

// WrapURLsNoEmbed wraps URLs in angle brackets to prevent Discord embeds.
func WrapURLsNoEmbed(text string) string {
	return urlPattern.ReplaceAllStringFunc(text, func(url string) string {
		trimmed := strings.TrimRight(url, ".,;:!?)")
		return fmt.Sprintf("<%s>%s", trimmed, url[len(trimmed):])
	})
}

// ParseWebhookURL splits a Discord webhook URL into its id and token.
func ParseWebhookURL(raw string) (id, token string, err error) {
	raw = strings.TrimSpace(raw)
	idx := strings.Index(raw, "/webhooks/")
	if idx < 0 {
		return "", "", fmt.Errorf("discord: not a webhook URL")
	}
	parts := strings.Split(strings.Trim(raw[idx+len("/webhooks/"):], "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("discord: webhook URL missing id or token")
	}
	token = parts[1]
	if q := strings.IndexByte(token, '?'); q >= 0 {
		token = token[:q]
	}
	return parts[0], token, nil
}
