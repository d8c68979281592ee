package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/faishion/tryon-client/internal/chatbot"
	"github.com/faishion/tryon-client/internal/progress"
)

// newChatCmd creates the 'chat' command.
func newChatCmd() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "chat [message...]",
		Short: "Ask the styling assistant",
		Long: `Send a message to the styling assistant and print its reply.

With --interactive, messages are read from stdin one line at a time until
/quit or end of input. A failed message is reported and the session goes
on; /history prints the conversation so far.

Every message starts a new conversation on the assistant's side. The
chatbot API key is read from the [chatbot] section of the config file or
from TRYON_CHATBOT_KEY.`,
		Example: `  tryon chat "what shoes go with a navy suit?"
  tryon chat --interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !interactive && len(args) == 0 {
				return fmt.Errorf("a message is required unless --interactive is set")
			}
			if interactive && len(args) > 0 {
				return fmt.Errorf("--interactive takes no message arguments")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			bus := newEventBus()
			defer closeEventBus(bus)

			client, err := chatbot.NewFromConfig(cfg, bus)
			if err != nil {
				return err
			}

			ctx := GetContext()
			out := cmd.OutOrStdout()
			rep := progress.New(os.Stderr)

			if interactive {
				_, err := runChatSession(ctx, client, cmd.InOrStdin(), out, rep)
				return err
			}
			return sendChat(ctx, client, strings.Join(args, " "), out, rep)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Read messages from stdin until /quit")

	return cmd
}

type chatSender interface {
	Send(ctx context.Context, text string) (string, error)
}

// cooldownReporter is implemented by senders that pause after the server
// rate limits them.
type cooldownReporter interface {
	CooldownRemaining() time.Duration
}

// chatMessage is one entry of a session transcript.
type chatMessage struct {
	Role    string // "user" or "assistant"
	Content string
	Failed  bool
}

func sendChat(ctx context.Context, client chatSender, text string, out io.Writer, rep progress.Reporter) error {
	rep.Start("Thinking")
	reply, err := client.Send(ctx, text)
	rep.Finish()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, reply)
	return nil
}

// runChatSession sends each line read from in through client and prints
// the reply, until /quit, end of input or cancellation of ctx. Send errors
// are printed and the session continues. It returns the transcript.
func runChatSession(ctx context.Context, client chatSender, in io.Reader, out io.Writer, rep progress.Reporter) ([]chatMessage, error) {
	var transcript []chatMessage

	fmt.Fprintln(out, mutedStyle.Render("Ask the styling assistant anything. /help lists commands."))
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return transcript, scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "/quit", "/exit", "/q":
			return transcript, nil
		case "/help", "/?":
			fmt.Fprintln(out, "commands: /history, /quit; anything else is sent to the assistant")
			continue
		case "/history":
			renderTranscript(out, transcript)
			continue
		}

		if cr, ok := client.(cooldownReporter); ok {
			if wait := cr.CooldownRemaining(); wait > 0 {
				fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("Rate limited, waiting %s", wait.Round(time.Second))))
			}
		}

		transcript = append(transcript, chatMessage{Role: "user", Content: line})
		rep.Start("Thinking")
		reply, err := client.Send(ctx, line)
		rep.Finish()

		if err != nil {
			if ctx.Err() != nil {
				return transcript, ctx.Err()
			}
			msg := "Error: " + err.Error()
			transcript = append(transcript, chatMessage{Role: "assistant", Content: msg, Failed: true})
			fmt.Fprintln(out, errorStyle.Render(msg))
			continue
		}

		transcript = append(transcript, chatMessage{Role: "assistant", Content: reply})
		fmt.Fprintln(out, reply)
	}
}

func renderTranscript(w io.Writer, transcript []chatMessage) {
	if len(transcript) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No messages yet"))
		return
	}
	for _, m := range transcript {
		switch {
		case m.Role == "user":
			fmt.Fprintf(w, "%s %s\n", headerStyle.Render("you:"), m.Content)
		case m.Failed:
			fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("assistant:"), errorStyle.Render(m.Content))
		default:
			fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("assistant:"), m.Content)
		}
	}
}
