// Package discord posts cluster notices to a Discord channel webhook.
package discord

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/hermes/src/cluster"
)

// maxDescription is in runes; Discord caps embed descriptions at 4096 characters.
const maxDescription = 4000

// Notifier announces newly formed clusters through a channel webhook.
type Notifier struct {
	session   *discordgo.Session
	webhookID string
	token     string
	dashboard string
}

// NewNotifier parses webhookURL. dashboardURL, when set, is linked from
// every notice.
func NewNotifier(webhookURL, dashboardURL string) (*Notifier, error) {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	// Webhook execution is authorised by the token in the path.
	session, err := discordgo.New("")
	if err != nil {
		return nil, err
	}
	return &Notifier{session: session, webhookID: id, token: token, dashboard: dashboardURL}, nil
}

func (n *Notifier) ClusterFormed(ctx context.Context, c cluster.Formed) error {
	params := &discordgo.WebhookParams{
		Username: "Hermes",
		Embeds:   []*discordgo.MessageEmbed{n.buildEmbed(c)},
	}
	_, err := n.session.WebhookExecute(n.webhookID, n.token, false, params, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	return nil
}

func (n *Notifier) buildEmbed(c cluster.Formed) *discordgo.MessageEmbed {
	description := truncateRunes(WrapURLsNoEmbed(c.Template), maxDescription)
	embed := &discordgo.MessageEmbed{
		Title:       "New misinformation cluster",
		Description: description,
		Color:       0xe67e22,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Hermes | cluster %s", shortID(c.ID)),
		},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Variations", Value: fmt.Sprintf("%d", c.Variations), Inline: true},
			{Name: "Head report", Value: shortID(c.HeadID), Inline: true},
		},
	}
	if n.dashboard != "" {
		embed.URL = n.dashboard
	}
	return embed
}

// truncateRunes cuts s to at most limit runes, marking the cut with "...".
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

func shortID(id string) string {
	if len(id) > 13 {
		return id[:8] + "..." + id[len(id)-4:]
	}
	return id
}
