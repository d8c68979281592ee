package cli

import (
	"bytes"
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/faishion/tryon-client/internal/chatbot"
	"github.com/faishion/tryon-client/internal/progress"
	"github.com/faishion/tryon-client/internal/ratelimit"
)

// scriptedSender answers each message with the next reply or error.
type scriptedSender struct {
	replies []string
	errs    []error
	got     []string
}

func (s *scriptedSender) Send(ctx context.Context, text string) (string, error) {
	i := len(s.got)
	s.got = append(s.got, text)
	return s.replies[i], s.errs[i]
}

func TestChatSessionReportsErrorsInline(t *testing.T) {
	sender := &scriptedSender{
		replies: []string{"", "Try loafers."},
		errs:    []error{errors.New("chatbot returned status 502"), nil},
	}
	script := "first question\n\n/help\nsecond question\n/history\n/quit\nnever sent\n"

	var out bytes.Buffer
	transcript, err := runChatSession(context.Background(), sender, strings.NewReader(script), &out, progress.NewNoOpProgress())
	if err != nil {
		t.Fatalf("runChatSession() error = %v", err)
	}

	if len(sender.got) != 2 || sender.got[1] != "second question" {
		t.Errorf("sent = %q, want both questions", sender.got)
	}

	text := out.String()
	for _, want := range []string{
		"Error: chatbot returned status 502",
		"Try loafers.",
		"commands: /history, /quit",
		"you: first question",
		"assistant: Try loafers.",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	if len(transcript) != 4 {
		t.Fatalf("transcript has %d messages, want 4: %+v", len(transcript), transcript)
	}
	if !transcript[1].Failed || transcript[1].Role != "assistant" {
		t.Errorf("transcript[1] = %+v, want a failed assistant message", transcript[1])
	}
	if transcript[3].Content != "Try loafers." || transcript[3].Failed {
		t.Errorf("transcript[3] = %+v", transcript[3])
	}
}

func TestChatSessionEndsAtEOF(t *testing.T) {
	sender := &scriptedSender{replies: []string{"hi"}, errs: []error{nil}}

	var out bytes.Buffer
	transcript, err := runChatSession(context.Background(), sender, strings.NewReader("hello"), &out, progress.NewNoOpProgress())
	if err != nil {
		t.Fatalf("runChatSession() at EOF error = %v", err)
	}
	if len(transcript) != 2 {
		t.Errorf("transcript has %d messages, want 2", len(transcript))
	}
}

func TestChatSessionStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sender := &scriptedSender{replies: []string{""}, errs: []error{context.Canceled}}

	_, err := runChatSession(ctx, sender, strings.NewReader("hello\nagain\n"), &bytes.Buffer{}, progress.NewNoOpProgress())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("runChatSession() error = %v, want context.Canceled", err)
	}
	if len(sender.got) != 1 {
		t.Errorf("sent %d messages after cancellation, want 1", len(sender.got))
	}
}

func TestChatSessionWaitsOutRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(nethttp.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"answer":"Try loafers."}`))
	}))
	defer server.Close()

	client, err := chatbot.NewClient(server.URL, "secret-key", "", chatbot.Options{
		HTTPClient: server.Client(),
		Limiter:    ratelimit.NewRateLimiter(1000, 1000),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	var out bytes.Buffer
	start := time.Now()
	transcript, err := runChatSession(context.Background(), client, strings.NewReader("what shoes?\nand a belt?\n"), &out, progress.NewNoOpProgress())
	if err != nil {
		t.Fatalf("runChatSession() error = %v", err)
	}

	text := out.String()
	for _, want := range []string{"Error: chatbot returned status 429", "Rate limited, waiting", "Try loafers."} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Errorf("session took %v, want the second message to wait out the 1s cooldown", elapsed)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
	if len(transcript) != 4 || transcript[3].Content != "Try loafers." {
		t.Errorf("transcript = %+v", transcript)
	}
}
