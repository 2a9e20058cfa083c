package logx

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type captureSender struct{ got chan string }

func (c *captureSender) SendLog(_ context.Context, channelID, text string) error {
	c.got <- channelID + "|" + text
	return nil
}

func TestFormatChatLine(t *testing.T) {
	t.Parallel()
	line := []byte(`{"level":"warn","time":"x","message":"roundup skipped","reason":"no_thread","comp":"roundup"}`)
	got := formatChatLine(line)
	want := "[WARN] roundup skipped\n- comp=roundup\n- reason=no_thread"
	if got != want {
		t.Fatalf("formatChatLine = %q, want %q", got, want)
	}
}

func TestFormatChatLineNonJSON(t *testing.T) {
	t.Parallel()
	if got := formatChatLine([]byte("  plain text \n")); got != "plain text" {
		t.Fatalf("formatChatLine = %q", got)
	}
}

func TestChatSinkRespectsMinLevel(t *testing.T) {
	sender := &captureSender{got: make(chan string, 4)}
	svc, log := New(Config{
		Level: "debug",
		Chat:  ChatConfig{Enabled: true, ChannelID: "123", MinLevel: "warn", RatePerSec: 10},
	}, sender)
	defer svc.Close()

	log.Info("ignored")
	log.Warn("delivered", String("k", "v"))

	select {
	case got := <-sender.got:
		if !strings.HasPrefix(got, "123|[WARN] delivered") {
			t.Fatalf("unexpected chat line %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("warn line was not delivered")
	}
	select {
	case got := <-sender.got:
		t.Fatalf("unexpected extra delivery %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLoggerWithFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := FromZerolog(zerolog.New(&buf)).With(String("comp", "test"))
	log.Info("hello", Int("n", 2))

	out := buf.String()
	for _, want := range []string{`"comp":"test"`, `"n":2`, `"message":"hello"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %s", out, want)
		}
	}
}

func TestValidLevel(t *testing.T) {
	t.Parallel()
	for _, ok := range []string{"", "info", "WARN", "warning", "debug"} {
		if !ValidLevel(ok) {
			t.Fatalf("ValidLevel(%q) = false", ok)
		}
	}
	if ValidLevel("loud") {
		t.Fatal("ValidLevel(loud) = true")
	}
}
