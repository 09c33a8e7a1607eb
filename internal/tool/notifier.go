package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-resty/resty/v2"
	"github.com/slack-go/slack"
)

// NotifierTool sends notifications to Slack, Discord, Telegram, or a
// generic webhook.
type NotifierTool struct{}

func init() {
	Register(&NotifierTool{})
}

func (*NotifierTool) Name() string { return "notifier" }

func (t *NotifierTool) Execute(ctx context.Context, input string, config map[string]any) (string, error) {
	channel := cfgString(config, "channel", "webhook")
	webhookURL := cfgString(config, "webhook_url", "")
	botToken := cfgString(config, "bot_token", "")
	chatID := cfgString(config, "chat_id", "")
	method := strings.ToUpper(cfgString(config, "method", "POST"))
	headersRaw := cfgString(config, "headers", "")
	timeout := cfgInt(config, "timeout", 10)

	message := strings.TrimSpace(input)
	if message == "" {
		return "[notifier] No message provided (input is empty).", nil
	}

	switch channel {
	case "slack":
		return sendSlack(ctx, webhookURL, message), nil
	case "discord":
		return sendDiscord(webhookURL, message), nil
	case "telegram":
		return sendTelegramNotification(ctx, botToken, chatID, message, timeout), nil
	case "webhook":
		return sendWebhook(ctx, webhookURL, method, headersRaw, message, timeout), nil
	}
	return fmt.Sprintf("[notifier] Unknown channel: %s", channel), nil
}

func sendSlack(ctx context.Context, webhookURL, message string) string {
	if webhookURL == "" {
		return "[notifier] Slack webhook_url is required."
	}
	err := slack.PostWebhookContext(ctx, webhookURL, &slack.WebhookMessage{Text: message})
	if err != nil {
		return fmt.Sprintf("[notifier] Slack error: %v", err)
	}
	return "Slack notification sent successfully."
}

var discordWebhookRe = regexp.MustCompile(`/api/webhooks/(\d+)/([\w-]+)`)

func sendDiscord(webhookURL, message string) string {
	if webhookURL == "" {
		return "[notifier] Discord webhook_url is required."
	}
	m := discordWebhookRe.FindStringSubmatch(webhookURL)
	if m == nil {
		return fmt.Sprintf("[notifier] Invalid Discord webhook URL: %s", webhookURL)
	}
	session, err := discordgo.New("")
	if err != nil {
		return fmt.Sprintf("[notifier] Discord error: %v", err)
	}

	params := &discordgo.WebhookParams{Content: message}
	if len(message) > 2000 {
		desc := message
		if len(desc) > 4096 {
			desc = desc[:4096]
		}
		params = &discordgo.WebhookParams{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "Gennaro Notification",
				Description: desc,
				Color:       5814783,
			}},
		}
	}
	if _, err := session.WebhookExecute(m[1], m[2], true, params); err != nil {
		return fmt.Sprintf("[notifier] Discord error: %v", err)
	}
	return "Discord notification sent successfully."
}

func sendTelegramNotification(ctx context.Context, botToken, chatID, message string, timeout int) string {
	if botToken == "" {
		return "[notifier] Telegram bot_token is required."
	}
	if chatID == "" {
		return "[notifier] Telegram chat_id is required."
	}
	text := message
	if len(text) > 4096 {
		text = text[:4096]
	}
	client := resty.New().SetTimeout(time.Duration(timeout) * time.Second)
	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	resp, err := client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"chat_id":    chatID,
			"text":       text,
			"parse_mode": "Markdown",
		}).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", botToken))
	if err != nil {
		return fmt.Sprintf("[notifier] Telegram error: %v", err)
	}
	if !result.OK {
		desc := result.Description
		if desc == "" {
			desc = resp.Status()
		}
		return fmt.Sprintf("[notifier] Telegram error: %s", desc)
	}
	return fmt.Sprintf("Telegram notification sent to chat %s.", chatID)
}

func sendWebhook(ctx context.Context, url, method, headersRaw, message string, timeout int) string {
	if url == "" {
		return "[notifier] Webhook URL is required."
	}
	headers := map[string]string{
		"Content-Type": "application/json",
		"User-Agent":   userAgent,
	}
	mergeJSONHeaders(headers, headersRaw)

	body, _ := json.Marshal(map[string]string{"message": message, "source": "gennaro"})
	client := resty.New().SetTimeout(time.Duration(timeout) * time.Second)
	resp, err := client.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(body).
		Execute(method, url)
	if err != nil {
		return fmt.Sprintf("[notifier] Webhook error: %v", err)
	}
	return fmt.Sprintf("Webhook %s %s → %d %s", method, url, resp.StatusCode(), resp.Status())
}
