package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/raphaelgruber/rxrag/internal/client"
	"github.com/raphaelgruber/rxrag/internal/models"
	"github.com/raphaelgruber/rxrag/internal/service"
	"github.com/spf13/cobra"
)

// chatBackend is one conversation, local or over the websocket.
type chatBackend interface {
	ask(ctx context.Context, prompt string) (models.Result, error)
	reset(ctx context.Context) error
	close() error
}

type localChat struct {
	assistant *service.Assistant
	session   string
}

func (l *localChat) ask(ctx context.Context, prompt string) (models.Result, error) {
	return l.assistant.Infer(ctx, l.session, prompt)
}

func (l *localChat) reset(context.Context) error {
	l.assistant.ResetSession(l.session)
	return nil
}

func (l *localChat) close() error { return nil }

type remoteChat struct {
	conn *client.ChatConn
}

func (r *remoteChat) ask(ctx context.Context, prompt string) (models.Result, error) {
	reply, err := r.conn.Ask(ctx, prompt)
	if err != nil {
		return models.Result{}, err
	}
	return models.AskResponse{Source: reply.Source, Response: reply.Response}.Result(), nil
}

func (r *remoteChat) reset(ctx context.Context) error { return r.conn.Reset(ctx) }

func (r *remoteChat) close() error { return r.conn.Close() }

func newChatCmd(e *env) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Start an interactive conversation with the pharmacist. The conversation keeps
its own memory, so drug information is attached only the first time a
medication comes up.

Commands:
  /reset   forget the conversation so far
  /quit    leave (also Ctrl-D)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var backend chatBackend
			if e.remote {
				conn, err := e.client().DialChat(ctx, session)
				if err != nil {
					return err
				}
				backend = &remoteChat{conn: conn}
			} else {
				a, err := e.openApp(ctx)
				if err != nil {
					return err
				}
				assistant, err := a.Assistant(ctx)
				if err != nil {
					return err
				}
				if session == "" {
					session = uuid.New().String()
				}
				backend = &localChat{assistant: assistant, session: session}
			}
			defer backend.close()

			return runChat(ctx, backend, cmd.InOrStdin(), newPrinter(cmd.OutOrStdout()))
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "resume a named session")
	return cmd
}

// runChat reads prompts line by line until EOF or /quit. Pipeline errors
// are printed and the loop continues.
func runChat(ctx context.Context, backend chatBackend, in io.Reader, p *printer) error {
	p.hint("Ask a medication question. /reset to start over, /quit to leave.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(p.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(p.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := backend.reset(ctx); err != nil {
				p.errorf("%v", err)
				continue
			}
			p.hint("Conversation reset.")
			continue
		}

		result, err := backend.ask(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.errorf("%v", err)
			continue
		}
		p.result(result)
	}
}
