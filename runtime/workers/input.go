package workers

import (
	"bufio"
	"chat-sync/contract"
	chaterrors "chat-sync/errors"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
)

const (
	quitCommand   = "/quit"
	statusCommand = "/status"
	searchCommand = "/search"
	retryCommand  = "/retry"
	helpCommand   = "/help"
)

// LineSource reads lines from the terminal on a goroutine of its own.
// A blocking read cannot observe a context, so it outlives worker restarts.
type LineSource struct {
	lines chan string
}

func NewLineSource(in io.Reader, log *slog.Logger) *LineSource {
	source := &LineSource{lines: make(chan string, DefaultChannelCapacity)}
	go func() {
		defer close(source.lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			source.lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			log.Warn("Terminal input closed", "error", err)
		}
	}()
	return source
}

func (s *LineSource) Lines() <-chan string {
	return s.lines
}

func (s *LineSource) Backlog() NamedChannel {
	return NamedChannel{Name: "input", Channel: s.lines}
}

// InputWorker turns terminal lines into sends and commands.
// quit ends the whole client, it is called on /quit and at end of input.
type InputWorker struct {
	session  contract.ISession
	searcher contract.Searcher
	renderer *Renderer
	lines    <-chan string
	quit     func()
	log      *slog.Logger
	pending  string
}

func NewInputWorker(session contract.ISession, searcher contract.Searcher, renderer *Renderer,
	lines <-chan string, quit func(), log *slog.Logger) *InputWorker {
	return &InputWorker{session: session, searcher: searcher, renderer: renderer, lines: lines, quit: quit, log: log}
}

func (w *InputWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case line, ok := <-w.lines:
			if !ok {
				w.log.Info("End of input, leaving")
				w.quit()
				return nil
			}
			if done := w.handle(ctx, line); done {
				return nil
			}
		}
	}
}

// handle reports whether the session must end.
func (w *InputWorker) handle(ctx context.Context, line string) bool {
	command, args, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch command {
	case quitCommand:
		w.quit()
		return true
	case statusCommand:
		w.renderer.ShowStatus(w.session.Status())
	case searchCommand:
		results, err := w.searcher.Search(args, 0)
		if err != nil {
			w.renderer.ShowNotice("search failed: %v", err)
			return false
		}
		w.renderer.ShowResults(results)
	case retryCommand:
		if w.pending == "" {
			w.renderer.ShowNotice("nothing to retry")
			return false
		}
		w.send(ctx, w.pending)
	case helpCommand:
		w.renderer.ShowNotice("commands: /status, /search <terms>, /retry, /quit")
	default:
		w.send(ctx, line)
	}
	return false
}

// send keeps the body of a rejected message for /retry.
func (w *InputWorker) send(ctx context.Context, body string) {
	err := w.session.Send(ctx, body)
	switch {
	case err == nil:
		w.pending = ""
	case errors.Is(err, chaterrors.ErrSessionClosed):
		w.renderer.ShowNotice("session is closed")
	default:
		w.pending = body
		w.renderer.ShowNotice("not sent, type /retry to send it again: %v", err)
	}
}
