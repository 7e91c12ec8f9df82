package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/event"
)

const (
	telegramAPIURL = "https://api.telegram.org"
	telegramLimit  = 4096
)

// TelegramNotifier sends an HTML digest of new events, one message per city,
// through the Bot API sendMessage method.
type TelegramNotifier struct {
	client *resty.Client
	token  string
	chatID string
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// NewTelegramNotifier creates a Telegram notifier. Token and chat ID are required.
func NewTelegramNotifier(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if cfg.ChatID == "" {
		return nil, fmt.Errorf("chat ID is required")
	}

	base := cfg.APIURL
	if base == "" {
		base = telegramAPIURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json")

	return &TelegramNotifier{client: client, token: cfg.Token, chatID: cfg.ChatID}, nil
}

// Notify sends the digest messages for events
func (n *TelegramNotifier) Notify(events []*event.Event) error {
	for _, msg := range FormatDigest(events) {
		if err := n.SendMessage(msg); err != nil {
			return err
		}
	}
	return nil
}

// SendMessage sends a text message to the configured chat
func (n *TelegramNotifier) SendMessage(text string) error {
	if text == "" {
		return fmt.Errorf("message text is required")
	}

	var result telegramResponse
	resp, err := n.client.R().
		SetBody(map[string]any{
			"chat_id":                  n.chatID,
			"text":                     text,
			"parse_mode":               "HTML",
			"disable_web_page_preview": true,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/bot" + n.token + "/sendMessage")
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode(), result.Description)
	}
	if !result.OK {
		return fmt.Errorf("telegram API returned ok=false: %s", result.Description)
	}
	return nil
}

// FormatDigest renders events as HTML messages grouped by city, cities in
// alphabetical order and events by date. A city whose section exceeds the
// Telegram message limit is split across several messages.
func FormatDigest(events []*event.Event) []string {
	byCity := make(map[string][]*event.Event)
	for _, evt := range events {
		byCity[evt.City] = append(byCity[evt.City], evt)
	}

	cities := make([]string, 0, len(byCity))
	for city := range byCity {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	var messages []string
	for _, city := range cities {
		cityEvents := byCity[city]
		sort.SliceStable(cityEvents, func(i, j int) bool { return event.Less(cityEvents[i], cityEvents[j]) })

		header := fmt.Sprintf("🎟️ <b>New events in %s</b> (%d)\n\n", html.EscapeString(city), len(cityEvents))
		var msg strings.Builder
		msg.WriteString(header)
		for _, evt := range cityEvents {
			line := formatLine(evt)
			if msg.Len()+len(line) > telegramLimit && msg.Len() > len(header) {
				messages = append(messages, strings.TrimRight(msg.String(), "\n"))
				msg.Reset()
				msg.WriteString(header)
			}
			msg.WriteString(line)
		}
		messages = append(messages, strings.TrimRight(msg.String(), "\n"))
	}
	return messages
}

func formatLine(evt *event.Event) string {
	title := html.EscapeString(evt.Title)
	if evt.URL != "" {
		title = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(evt.URL), title)
	}

	line := fmt.Sprintf("• <b>%s</b>\n  📅 %s", title, when(evt.Date))
	if evt.Venue.Name != "" {
		line += "\n  📍 " + html.EscapeString(evt.Venue.Name)
	}
	return line + "\n\n"
}
