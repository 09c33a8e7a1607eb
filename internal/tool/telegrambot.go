package tool

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramBotTool talks to the Telegram Bot API: send messages, documents
// and photos, fetch updates and chat info.
type TelegramBotTool struct{}

func init() {
	Register(&TelegramBotTool{})
}

func (*TelegramBotTool) Name() string { return "telegram_bot" }

func (t *TelegramBotTool) Execute(_ context.Context, input string, config map[string]any) (string, error) {
	operation := cfgString(config, "operation", "send_message")
	botToken := cfgString(config, "bot_token", "")
	if botToken == "" {
		botToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if botToken == "" {
		return "[telegram_bot] bot_token is required. Set it in node config or TELEGRAM_BOT_TOKEN env.", nil
	}
	chatID := cfgString(config, "chat_id", "")
	parseMode := cfgString(config, "parse_mode", "Markdown")

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return fmt.Sprintf("[telegram_bot] Failed to connect: %v", err), nil
	}

	switch operation {
	case "send_message":
		return tgSendMessage(bot, chatID, input, parseMode), nil
	case "send_document":
		return tgSendFile(bot, chatID, input, false), nil
	case "send_photo":
		return tgSendFile(bot, chatID, input, true), nil
	case "get_updates":
		return tgGetUpdates(bot), nil
	case "get_chat_info":
		return tgGetChatInfo(bot, chatID), nil
	}
	return fmt.Sprintf("[telegram_bot] Unknown operation: %s", operation), nil
}

func tgParseChatID(chatID string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
}

func tgSendMessage(bot *tgbotapi.BotAPI, chatID, text, parseMode string) string {
	if chatID == "" {
		return "[telegram_bot] chat_id is required for send_message."
	}
	if strings.TrimSpace(text) == "" {
		return "[telegram_bot] No message text provided."
	}
	if len(text) > 4096 {
		text = text[:4096]
	}

	var msg tgbotapi.MessageConfig
	if strings.HasPrefix(chatID, "@") {
		msg = tgbotapi.NewMessageToChannel(chatID, text)
	} else {
		id, err := tgParseChatID(chatID)
		if err != nil {
			return fmt.Sprintf("[telegram_bot] Invalid chat_id: %s", chatID)
		}
		msg = tgbotapi.NewMessage(id, text)
	}
	if parseMode != "" && parseMode != "plain" {
		msg.ParseMode = parseMode
	}

	sent, err := bot.Send(msg)
	if err != nil {
		return fmt.Sprintf("[telegram_bot] send_message error: %v", err)
	}
	return fmt.Sprintf("Message sent to chat %s (message_id: %d)", chatID, sent.MessageID)
}

func tgSendFile(bot *tgbotapi.BotAPI, chatID, filePath string, asPhoto bool) string {
	op := "send_document"
	if asPhoto {
		op = "send_photo"
	}
	if chatID == "" {
		return fmt.Sprintf("[telegram_bot] chat_id is required for %s.", op)
	}
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return fmt.Sprintf("[telegram_bot] %s expects a file path as input.", op)
	}
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Sprintf("[telegram_bot] File not found: %s", filePath)
	}
	id, err := tgParseChatID(chatID)
	if err != nil {
		return fmt.Sprintf("[telegram_bot] Invalid chat_id: %s", chatID)
	}

	var msg tgbotapi.Chattable
	if asPhoto {
		msg = tgbotapi.NewPhoto(id, tgbotapi.FilePath(filePath))
	} else {
		msg = tgbotapi.NewDocument(id, tgbotapi.FilePath(filePath))
	}
	if _, err := bot.Send(msg); err != nil {
		return fmt.Sprintf("[telegram_bot] %s error: %v", op, err)
	}
	return fmt.Sprintf("File sent to chat %s: %s", chatID, filePath)
}

func tgGetUpdates(bot *tgbotapi.BotAPI) string {
	updates, err := bot.GetUpdates(tgbotapi.UpdateConfig{Limit: 20})
	if err != nil {
		return fmt.Sprintf("[telegram_bot] get_updates error: %v", err)
	}
	if len(updates) == 0 {
		return "No recent updates."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Recent updates (%d):\n\n", len(updates))
	for _, u := range updates {
		if u.Message == nil {
			continue
		}
		from := ""
		if u.Message.From != nil {
			from = u.Message.From.UserName
		}
		fmt.Fprintf(&b, "- chat %d, from @%s: %s\n", u.Message.Chat.ID, from, u.Message.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func tgGetChatInfo(bot *tgbotapi.BotAPI, chatID string) string {
	if chatID == "" {
		return "[telegram_bot] chat_id is required for get_chat_info."
	}
	id, err := tgParseChatID(chatID)
	if err != nil {
		return fmt.Sprintf("[telegram_bot] Invalid chat_id: %s", chatID)
	}
	chat, err := bot.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: id}})
	if err != nil {
		return fmt.Sprintf("[telegram_bot] get_chat_info error: %v", err)
	}
	return fmt.Sprintf(
		"**Chat:** %s\n**Type:** %s\n**Title:** %s\n**Username:** @%s",
		chatID, chat.Type, chat.Title, chat.UserName)
}
