package notification

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/olegiv/battlelog-tools-go/internal/storage"
)

func testRun(mode string) *storage.Run {
	return &storage.Run{
		Timestamp:    time.Date(2021, 9, 29, 10, 30, 0, 0, time.UTC),
		Mode:         mode,
		CollectionID: "ladder_2021-09",
		Directories:  []string{"/logs/a", "/logs/b"},
		Attempted:    10,
		Succeeded:    8,
		Duration:     2500 * time.Millisecond,
		Failures: []storage.Failure{
			{Path: "/logs/a/x.log.json", Kind: "invalid_log"},
			{Path: "/logs/a/y.log.json", Kind: "invalid_log"},
			{Path: "/logs/b/z.log.json", Kind: "io"},
		},
	}
}

func TestFormatMessage_Statistics(t *testing.T) {
	client := &TelegramClient{hostname: "test-server.local"}

	run := testRun("statistics")
	run.Formats = []storage.FormatCount{
		{Format: "gen8ou", Total: 3},
		{Format: "gen8randombattle", Total: 5},
	}
	message := client.formatMessage(run)

	for _, want := range []string{
		"*Battle Log Statistics Report*",
		"test\\-server\\.local",
		"ladder\\_2021\\-09",
		"📂 Directories\\: 2",
		"• Files\\: 10",
		"• Failed\\: 3",
		"2\\.50s",
		"• invalid\\_log\\: 2",
		"• io\\: 1",
		"📊 *Formats* \\(2, 8 battles\\)",
		"1\\. gen8randombattle\\: 5 battles",
		"2\\. gen8ou\\: 3 battles",
	} {
		if !strings.Contains(message, want) {
			t.Errorf("message does not contain %q:\n%s", want, message)
		}
	}
	if strings.Contains(message, "x.log.json") {
		t.Error("message lists failed file paths")
	}
}

func TestFormatMessage_ManyFormats(t *testing.T) {
	client := &TelegramClient{hostname: "h"}
	run := testRun("statistics")
	for i := 0; i < topFormats+3; i++ {
		run.Formats = append(run.Formats, storage.FormatCount{Format: fmt.Sprintf("gen%d", i), Total: 1})
	}

	message := client.formatMessage(run)
	if !strings.Contains(message, "and 3 more") {
		t.Errorf("expected truncated format list:\n%s", message)
	}
}

func TestFormatMessage_OtherModes(t *testing.T) {
	client := &TelegramClient{hostname: "h"}

	search := testRun("search")
	search.Matches = 42
	if msg := client.formatMessage(search); !strings.Contains(msg, "*Matches*\\: 42") {
		t.Errorf("search report missing matches:\n%s", msg)
	}

	anon := testRun("anonymize")
	anon.Written = 7
	anon.Overwritten = 1
	msg := client.formatMessage(anon)
	if !strings.Contains(msg, "• Written\\: 7") || !strings.Contains(msg, "• Overwritten\\: 1") {
		t.Errorf("anonymize report missing counts:\n%s", msg)
	}

	empty := testRun("statistics")
	if msg := client.formatMessage(empty); !strings.Contains(msg, "No battles matched\\.") {
		t.Errorf("empty statistics report:\n%s", msg)
	}
}

func TestStatusEmoji(t *testing.T) {
	run := &storage.Run{Succeeded: 1}
	if statusEmoji(run) != "🟢" {
		t.Error("clean run should be green")
	}
	run.Failures = []storage.Failure{{Kind: "io"}}
	if statusEmoji(run) != "🟡" {
		t.Error("run with failures should be yellow")
	}
	run.Succeeded = 0
	if statusEmoji(run) != "🔴" {
		t.Error("run without successes should be red")
	}
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"gen8ou.log", "gen8ou\\.log"},
		{"a_b*c", "a\\_b\\*c"},
		{"(1+1=2)!", "\\(1\\+1\\=2\\)\\!"},
		{"back\\slash", "back\\\\slash"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
	}

	for _, tt := range tests {
		if got := escapeMarkdown(tt.in); got != tt.want {
			t.Errorf("escapeMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitMessage(t *testing.T) {
	short := "hello\nworld"
	if parts := splitMessage(short); len(parts) != 1 || parts[0] != short {
		t.Errorf("short message split: %v", parts)
	}

	line := strings.Repeat("x", 100)
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString(line)
		b.WriteString("\n")
	}
	parts := splitMessage(b.String())
	if len(parts) < 3 {
		t.Fatalf("expected at least 3 parts, got %d", len(parts))
	}
	total := 0
	for _, p := range parts {
		if len(p) > maxMessageLength {
			t.Errorf("part of %d bytes exceeds the limit", len(p))
		}
		for _, l := range strings.Split(strings.TrimSuffix(p, "\n"), "\n") {
			if l != "" && l != line {
				t.Errorf("line cut in the middle: %d bytes", len(l))
			}
		}
		total += strings.Count(p, line)
	}
	if total != 100 {
		t.Errorf("lines after split = %d, want 100", total)
	}

	long := strings.Repeat("y", maxMessageLength*2+10)
	parts = splitMessage(long)
	if len(parts) != 3 || len(parts[0]) != maxMessageLength || len(parts[2]) != 10 {
		t.Errorf("long line split into %d parts", len(parts))
	}
}

func TestRateLimitErrors(t *testing.T) {
	if isRateLimitError(nil) {
		t.Error("nil is not a rate limit error")
	}
	if isRateLimitError(errors.New("Bad Request: chat not found")) {
		t.Error("400 treated as rate limit")
	}

	err := errors.New("Too Many Requests: retry after 17")
	if !isRateLimitError(err) {
		t.Error("429 not detected")
	}
	if got := extractRetryAfter(err); got != 17 {
		t.Errorf("extractRetryAfter = %d, want 17", got)
	}
	if got := extractRetryAfter(errors.New("Too Many Requests")); got != 30 {
		t.Errorf("extractRetryAfter default = %d, want 30", got)
	}
	if got := extractRetryAfter(nil); got != 0 {
		t.Errorf("extractRetryAfter(nil) = %d", got)
	}
}

func TestRetryDelay(t *testing.T) {
	if retryDelay(1) != 2*time.Second || retryDelay(2) != 4*time.Second || retryDelay(3) != 8*time.Second {
		t.Errorf("unexpected backoff: %v %v %v", retryDelay(1), retryDelay(2), retryDelay(3))
	}
}

func TestWaitForRateLimit(t *testing.T) {
	var slept time.Duration
	client := &TelegramClient{sleep: func(d time.Duration) { slept += d }}

	client.waitForRateLimit()
	if slept != 0 {
		t.Errorf("first message waited %v", slept)
	}

	client.lastMessageTime = time.Now()
	client.waitForRateLimit()
	if slept <= 0 || slept > minMessageInterval {
		t.Errorf("waited %v, want (0, %v]", slept, minMessageInterval)
	}
}
