// Package notification sends run reports to a Telegram channel.
package notification

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	internalerrors "github.com/olegiv/battlelog-tools-go/internal/errors"
	"github.com/olegiv/battlelog-tools-go/internal/storage"
)

const (
	maxMessageLength = 4096
	// minMessageInterval is the minimum time between messages to the same channel
	minMessageInterval = 1 * time.Second
	// maxRetries is the maximum number of retry attempts for sending messages
	maxRetries = 3
	// baseRetryDelay is the initial delay between retries (doubles each attempt)
	baseRetryDelay = 2 * time.Second
	// topFormats is how many formats a statistics report lists
	topFormats = 10
)

// markdownEscaper escapes the characters reserved by Telegram MarkdownV2.
// See: https://core.telegram.org/bots/api#markdownv2-style
var markdownEscaper = func() *strings.Replacer {
	var pairs []string
	for _, c := range []string{
		"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!", ":",
	} {
		pairs = append(pairs, c, "\\"+c)
	}
	return strings.NewReplacer(pairs...)
}()

// TelegramClient handles Telegram notifications
type TelegramClient struct {
	bot             *tgbotapi.BotAPI
	channel         int64
	hostname        string
	lastMessageTime time.Time
	sleep           func(time.Duration)
}

// NewTelegramClient creates a new Telegram client
func NewTelegramClient(botToken string, channel int64) (*TelegramClient, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		// The token is part of the request URL; keep it out of the error
		return nil, internalerrors.Wrapf(err, "failed to create Telegram bot")
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &TelegramClient{
		bot:      bot,
		channel:  channel,
		hostname: hostname,
		sleep:    time.Sleep,
	}, nil
}

// SendRunReport sends a summary of a finished run to the channel
func (t *TelegramClient) SendRunReport(run *storage.Run) error {
	if err := t.sendToChannel(t.channel, t.formatMessage(run)); err != nil {
		return fmt.Errorf("failed to send run report: %w", err)
	}
	return nil
}

// formatMessage formats a run into a MarkdownV2 Telegram message
func (t *TelegramClient) formatMessage(run *storage.Run) string {
	var msg strings.Builder

	// Header
	msg.WriteString(fmt.Sprintf("%s *Battle Log %s Report*\n", statusEmoji(run), escapeMarkdown(titleCase(run.Mode))))
	msg.WriteString(fmt.Sprintf("🖥 Host\\: %s\n", escapeMarkdown(t.hostname)))
	msg.WriteString(fmt.Sprintf("📅 Date\\: %s\n", escapeMarkdown(run.Timestamp.Format("2006-01-02 15:04:05"))))
	if run.CollectionID != "" {
		msg.WriteString(fmt.Sprintf("📁 Collection\\: %s\n", escapeMarkdown(run.CollectionID)))
	}
	msg.WriteString(fmt.Sprintf("📂 Directories\\: %d\n\n", len(run.Directories)))

	// Execution Stats
	msg.WriteString("📋 *Execution Stats*\n")
	msg.WriteString(fmt.Sprintf("• Files\\: %d\n", run.Attempted))
	msg.WriteString(fmt.Sprintf("• Succeeded\\: %d\n", run.Succeeded))
	msg.WriteString(fmt.Sprintf("• Failed\\: %d\n", run.Failed()))
	msg.WriteString(fmt.Sprintf("• Duration\\: %s\n", escapeMarkdown(fmt.Sprintf("%.2fs", run.Duration.Seconds()))))
	msg.WriteString("\n")

	if run.Failed() > 0 {
		kinds := make(map[string]int)
		for _, f := range run.Failures {
			kinds[f.Kind]++
		}
		names := make([]string, 0, len(kinds))
		for k := range kinds {
			names = append(names, k)
		}
		sort.Strings(names)

		msg.WriteString(fmt.Sprintf("⚡ *Failures* \\(%d\\)\n", run.Failed()))
		for _, k := range names {
			msg.WriteString(fmt.Sprintf("• %s\\: %d\n", escapeMarkdown(k), kinds[k]))
		}
		msg.WriteString("\n")
	}

	switch run.Mode {
	case "statistics":
		writeFormats(&msg, run.Formats)
	case "search":
		msg.WriteString(fmt.Sprintf("🔎 *Matches*\\: %d\n", run.Matches))
	case "anonymize":
		msg.WriteString("🕶 *Output*\n")
		msg.WriteString(fmt.Sprintf("• Written\\: %d\n", run.Written))
		if run.Overwritten > 0 {
			msg.WriteString(fmt.Sprintf("• Overwritten\\: %d\n", run.Overwritten))
		}
	}

	return msg.String()
}

// writeFormats lists the formats with the most battles
func writeFormats(msg *strings.Builder, formats []storage.FormatCount) {
	if len(formats) == 0 {
		msg.WriteString("📊 No battles matched\\.\n")
		return
	}

	sorted := make([]storage.FormatCount, len(formats))
	copy(sorted, formats)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Total != sorted[j].Total {
			return sorted[i].Total > sorted[j].Total
		}
		return sorted[i].Format < sorted[j].Format
	})

	battles := 0
	for _, f := range sorted {
		battles += f.Total
	}
	msg.WriteString(fmt.Sprintf("📊 *Formats* \\(%d, %d battles\\)\n", len(sorted), battles))

	for i, f := range sorted {
		if i == topFormats {
			msg.WriteString(fmt.Sprintf("… and %d more\n", len(sorted)-topFormats))
			break
		}
		msg.WriteString(fmt.Sprintf("%d\\. %s\\: %d battles\n", i+1, escapeMarkdown(f.Format), f.Total))
	}
}

func statusEmoji(run *storage.Run) string {
	switch {
	case run.Succeeded == 0:
		return "🔴"
	case run.Failed() > 0:
		return "🟡"
	default:
		return "🟢"
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// sendToChannel sends a message to a Telegram channel with rate limiting
func (t *TelegramClient) sendToChannel(channelID int64, message string) error {
	for _, msg := range splitMessage(message) {
		t.waitForRateLimit()

		msgConfig := tgbotapi.NewMessage(channelID, msg)
		msgConfig.ParseMode = "MarkdownV2"

		if err := t.sendWithRetry(msgConfig); err != nil {
			return err
		}

		t.lastMessageTime = time.Now()
	}

	return nil
}

// waitForRateLimit ensures minimum interval between messages
func (t *TelegramClient) waitForRateLimit() {
	if t.lastMessageTime.IsZero() {
		return
	}

	elapsed := time.Since(t.lastMessageTime)
	if elapsed < minMessageInterval {
		t.sleep(minMessageInterval - elapsed)
	}
}

// sendWithRetry sends a message with exponential backoff retry
func (t *TelegramClient) sendWithRetry(msgConfig tgbotapi.MessageConfig) error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		_, err := t.bot.Send(msgConfig)
		if err == nil {
			return nil
		}

		lastErr = err

		// Telegram tells us how long to back off on 429
		if isRateLimitError(err) {
			if retryAfter := extractRetryAfter(err); retryAfter > 0 {
				t.sleep(time.Duration(retryAfter) * time.Second)
				continue
			}
		}

		if attempt < maxRetries {
			t.sleep(retryDelay(attempt))
		}
	}

	return internalerrors.Wrapf(lastErr, "failed to send message after %d retries", maxRetries)
}

// retryDelay is the backoff before retry number attempt+1: 2s, 4s, 8s...
func retryDelay(attempt int) time.Duration {
	return baseRetryDelay * time.Duration(1<<(attempt-1))
}

// isRateLimitError checks if the error is a Telegram rate limit error (429)
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") || strings.Contains(errStr, "Too Many Requests")
}

// extractRetryAfter extracts the retry_after value from a rate limit error
func extractRetryAfter(err error) int {
	if err == nil {
		return 0
	}

	// Example: "Too Many Requests: retry after 30"
	errStr := err.Error()
	if idx := strings.Index(strings.ToLower(errStr), "retry after "); idx != -1 {
		remaining := errStr[idx+len("retry after "):]
		var seconds int
		if _, err := fmt.Sscanf(remaining, "%d", &seconds); err == nil {
			return seconds
		}
	}

	// Conservative default when the value is missing
	return 30
}

// splitMessage splits a long message into parts of at most maxMessageLength
// bytes, preferring line boundaries
func splitMessage(message string) []string {
	if len(message) <= maxMessageLength {
		return []string{message}
	}

	var messages []string
	var currentMsg strings.Builder

	for _, line := range strings.Split(message, "\n") {
		if currentMsg.Len()+len(line)+1 > maxMessageLength {
			if currentMsg.Len() > 0 {
				messages = append(messages, currentMsg.String())
				currentMsg.Reset()
			}

			// A single line that is too long is cut into chunks
			if len(line) > maxMessageLength {
				for i := 0; i < len(line); i += maxMessageLength {
					end := i + maxMessageLength
					if end > len(line) {
						end = len(line)
					}
					messages = append(messages, line[i:end])
				}
				continue
			}
		}

		currentMsg.WriteString(line)
		currentMsg.WriteString("\n")
	}

	if currentMsg.Len() > 0 {
		messages = append(messages, currentMsg.String())
	}

	return messages
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2
func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

// GetBotInfo returns information about the bot
func (t *TelegramClient) GetBotInfo() map[string]interface{} {
	return map[string]interface{}{
		"username": t.bot.Self.UserName,
		"channel":  t.channel,
		"hostname": t.hostname,
	}
}

// Close closes the Telegram client
func (t *TelegramClient) Close() error {
	t.bot.StopReceivingUpdates()
	return nil
}
