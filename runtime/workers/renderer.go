package workers

import (
	"chat-sync/domain"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

const timeLayout = "15:04:05"

// frame is one unit of terminal output.
type frame struct {
	messages   []domain.Message
	snapshot   bool
	status     *domain.Status
	transition bool
	results    []domain.Message
	notice     string
}

// Renderer owns the terminal output. Every other component hands it frames,
// so lines from different goroutines never interleave.
type Renderer struct {
	out      io.Writer
	identity domain.Identity
	colours  bool
	log      *slog.Logger
	frames   chan frame
	closed   chan struct{}
	once     sync.Once
	sampler  *SelfSampler

	// owned by Run
	printed   map[int64]struct{}
	latest    *domain.Message
	lastState *domain.Status
}

func NewRenderer(out io.Writer, identity domain.Identity, colours bool, bufferSize int, log *slog.Logger) *Renderer {
	if bufferSize <= 0 {
		bufferSize = DefaultChannelCapacity
	}
	return &Renderer{
		out:      out,
		identity: identity,
		colours:  colours,
		log:      log,
		frames:   make(chan frame, bufferSize),
		closed:   make(chan struct{}),
		printed:  make(map[int64]struct{}),
	}
}

func (r *Renderer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.log.Debug("Stopping worker")
			return ctx.Err()
		case <-r.closed:
			return nil
		case f := <-r.frames:
			r.render(f)
		}
	}
}

// WithProcessStats adds the process memory and CPU to the status table.
// It must be called before Run.
func (r *Renderer) WithProcessStats(sampler *SelfSampler) *Renderer {
	r.sampler = sampler
	return r
}

// Close releases producers blocked on a full buffer once Run is gone.
func (r *Renderer) Close() {
	r.once.Do(func() { close(r.closed) })
}

// ShowView prints the messages of a snapshot that were not printed yet.
// The whole snapshot is printed again when one of them sorts before a line
// already on screen.
func (r *Renderer) ShowView(messages []domain.Message) {
	r.push(frame{messages: messages, snapshot: true})
}

// ShowLatest prints a message the session just accepted.
func (r *Renderer) ShowLatest(message domain.Message) {
	r.push(frame{messages: []domain.Message{message}})
}

func (r *Renderer) ShowStatus(status domain.Status) {
	r.push(frame{status: &status})
}

func (r *Renderer) ShowResults(results []domain.Message) {
	if results == nil {
		results = []domain.Message{}
	}
	r.push(frame{results: results})
}

func (r *Renderer) ShowNotice(format string, args ...any) {
	r.push(frame{notice: fmt.Sprintf(format, args...)})
}

// StatusChanged only reports transitions worth a line in the chat.
func (r *Renderer) StatusChanged(status domain.Status) {
	r.push(frame{status: &status, transition: true})
}

func (r *Renderer) push(f frame) {
	select {
	case r.frames <- f:
	case <-r.closed:
	}
}

func (r *Renderer) render(f frame) {
	switch {
	case f.status != nil && f.transition:
		r.renderTransition(*f.status)
	case f.status != nil:
		r.renderStatus(*f.status)
	case f.results != nil:
		r.renderResults(f.results)
	case f.notice != "":
		r.println(r.paint(color.FgYellow, "* "+f.notice))
	default:
		r.renderMessages(f.messages, f.snapshot)
	}
}

func (r *Renderer) renderMessages(messages []domain.Message, snapshot bool) {
	if snapshot && r.insertsEarlier(messages) {
		r.println(r.paint(color.FgYellow, "* earlier messages arrived, full view:"))
		for _, message := range messages {
			r.printMessage(message)
		}
		return
	}
	for _, message := range messages {
		if _, ok := r.printed[message.ID]; ok {
			continue
		}
		r.printMessage(message)
	}
}

// insertsEarlier reports whether an unprinted message sorts before the latest printed one.
func (r *Renderer) insertsEarlier(messages []domain.Message) bool {
	if r.latest == nil {
		return false
	}
	for _, message := range messages {
		if _, ok := r.printed[message.ID]; !ok && message.Before(*r.latest) {
			return true
		}
	}
	return false
}

func (r *Renderer) printMessage(message domain.Message) {
	r.printed[message.ID] = struct{}{}
	if r.latest == nil || r.latest.Before(message) {
		r.latest = &message
	}
	r.println(r.formatMessage(message))
}

func (r *Renderer) formatMessage(message domain.Message) string {
	at := message.CreatedAt.Local().Format(timeLayout)
	if message.IsFrom(r.identity) {
		return r.paint(color.FgGreen, fmt.Sprintf("[%s] %s (you): %s", at, message.Author, message.Body))
	}
	return fmt.Sprintf("[%s] %s: %s", at, r.paint(color.FgCyan, message.Author), message.Body)
}

func (r *Renderer) renderTransition(status domain.Status) {
	previous := r.lastState
	r.lastState = &status
	if previous == nil {
		return
	}
	switch {
	case previous.FeedErr == nil && status.FeedErr != nil:
		r.println(r.paint(color.FgRed, "* live updates lost: "+status.FeedErr.Error()))
	case previous.FeedErr != nil && status.FeedErr == nil:
		r.println(r.paint(color.FgYellow, "* live updates restored"))
	}
	if previous.HistoryErr == nil && status.HistoryErr != nil {
		r.println(r.paint(color.FgRed, "* history unavailable: "+status.HistoryErr.Error()))
	}
}

func (r *Renderer) renderStatus(status domain.Status) {
	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"Field", "Value"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.Append([]string{"State", status.State.String()})
	table.Append([]string{"Identity", status.Identity.String()})
	table.Append([]string{"Messages", strconv.Itoa(status.Len)})
	table.Append([]string{"Reconnects", strconv.Itoa(status.Reconnects)})
	table.Append([]string{"History", errText(status.HistoryErr)})
	table.Append([]string{"Feed", errText(status.FeedErr)})
	table.Append([]string{"Last send", errText(status.SendErr)})
	if r.sampler != nil {
		if stats, err := r.sampler.Sample(); err != nil {
			r.log.Debug("Failed to collect self stats", "error", err)
		} else {
			table.Append([]string{"Memory (RSS)", fmt.Sprintf("%d MB", stats.RSS/1024/1024)})
			table.Append([]string{"CPU", fmt.Sprintf("%.1f%%", stats.CPUPercent)})
		}
	}
	table.Render()
}

func (r *Renderer) renderResults(results []domain.Message) {
	if len(results) == 0 {
		r.println(r.paint(color.FgYellow, "* no match"))
		return
	}
	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"Time", "Author", "Message"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, message := range results {
		table.Append([]string{message.CreatedAt.Local().Format(timeLayout), message.Author, message.Body})
	}
	table.Render()
}

func (r *Renderer) paint(c color.Color, text string) string {
	if !r.colours {
		return text
	}
	return c.Render(text)
}

func (r *Renderer) println(line string) {
	if _, err := fmt.Fprintln(r.out, line); err != nil {
		r.log.Debug("Terminal write failed", "error", err)
	}
}

func errText(err error) string {
	if err == nil {
		return "ok"
	}
	return err.Error()
}

func (r *Renderer) Backlog() NamedChannel {
	return NamedChannel{Name: "renderer", Channel: r.frames}
}
