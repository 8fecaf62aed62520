package workers

import (
	"bytes"
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/mocks"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type inputFixture struct {
	session  *mocks.MockISession
	searcher *mocks.MockSearcher
	out      *syncBuffer
	lines    chan string
	quits    atomic.Int32
	worker   *InputWorker
}

func newInputFixture(t *testing.T) *inputFixture {
	ctrl := gomock.NewController(t)
	f := &inputFixture{
		session:  mocks.NewMockISession(ctrl),
		searcher: mocks.NewMockSearcher(ctrl),
		lines:    make(chan string, 8),
	}
	renderer, out := startRenderer(t)
	f.out = out
	f.worker = NewInputWorker(f.session, f.searcher, renderer, f.lines, func() { f.quits.Add(1) }, slog.Default())
	return f
}

func (f *inputFixture) run(t *testing.T, lines ...string) {
	for _, line := range lines {
		f.lines <- line
	}
	close(f.lines)
	require.NoError(t, f.worker.Run(context.Background()))
}

func TestInputWorker_Sends_Plain_Lines(t *testing.T) {
	f := newInputFixture(t)

	// Given two chat lines, the blank one is left to the session
	f.session.EXPECT().Send(gomock.Any(), "hello").Return(nil)
	f.session.EXPECT().Send(gomock.Any(), "  ").Return(nil)

	f.run(t, "hello", "  ")

	// Then the end of input ends the client
	require.Equal(t, int32(1), f.quits.Load())
}

func TestInputWorker_Quit(t *testing.T) {
	req := require.New(t)
	f := newInputFixture(t)

	// When /quit is typed, the lines after it are never sent
	f.lines <- "/quit"
	f.lines <- "ignored"

	req.NoError(f.worker.Run(context.Background()))
	req.Equal(int32(1), f.quits.Load())
}

func TestInputWorker_Status_And_Search(t *testing.T) {
	req := require.New(t)
	f := newInputFixture(t)
	f.session.EXPECT().Status().Return(domain.Status{State: domain.StateLive, Identity: "Alice", Len: 2})
	f.searcher.EXPECT().Search("deploy", 0).Return([]domain.Message{{ID: 1, Author: "Bob", Body: "deploy friday", CreatedAt: at}}, nil)

	f.run(t, "/status", "/search deploy")

	req.Eventually(func() bool { return strings.Contains(f.out.String(), "deploy friday") }, time.Second, 5*time.Millisecond)
	req.Contains(f.out.String(), "Messages")
}

func TestInputWorker_Retry_Keeps_Rejected_Input(t *testing.T) {
	req := require.New(t)
	f := newInputFixture(t)
	rejected := fmt.Errorf("%w: timeout", errors.ErrInsertRejected)
	gomock.InOrder(
		f.session.EXPECT().Send(gomock.Any(), "important").Return(rejected),
		f.session.EXPECT().Send(gomock.Any(), "important").Return(nil),
	)

	// When a rejected message is retried, then retried again
	f.run(t, "important", "/retry", "/retry")

	// Then it is sent once more and forgotten after success
	req.Eventually(func() bool { return strings.Contains(f.out.String(), "nothing to retry") }, time.Second, 5*time.Millisecond)
	req.Contains(f.out.String(), "not sent")
}

func TestInputWorker_Stops_On_Context(t *testing.T) {
	f := newInputFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.worker.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
}

func TestLineSource(t *testing.T) {
	req := require.New(t)
	source := NewLineSource(bytes.NewBufferString("one\ntwo\n"), slog.Default())

	var got []string
	for line := range source.Lines() {
		got = append(got, line)
	}

	req.Equal([]string{"one", "two"}, got)
}
