package e2e

import (
	"chat-sync/domain"
	"chat-sync/internal"
	"chat-sync/session"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

// BaseChatSuite opens one store backend per test and hands out sessions on it.
type BaseChatSuite struct {
	suite.Suite
	Config  Config
	log     *slog.Logger
	backend *internal.Backend
	runID   string
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseChatSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.log = logs.GetLoggerFromString(s.Config.LogLevel)
}

func (s *BaseChatSuite) SetupTest() {
	s.runID = strings.ReplaceAll(uuid.NewString(), "-", "")
	backend, err := internal.OpenBackend(context.Background(), s.backendConfig(), s.log)
	s.Require().NoError(err, "Failed to open %s backend", s.Config.Backend)
	s.backend = backend
}

func (s *BaseChatSuite) TearDownTest() {
	if s.backend != nil {
		s.backend.Close()
	}
}

// backendConfig isolates every test run in its own stream or directory.
func (s *BaseChatSuite) backendConfig() internal.Config {
	return internal.Config{
		StoreBackend:    s.Config.Backend,
		DatabaseURL:     s.Config.DatabaseURL,
		DBMaxConns:      8,
		PgNotifyChannel: "messages_inserted",
		PgEnsureSchema:  true,
		RedisURL:        s.Config.RedisURL,
		RedisStream:     "e2e:" + s.runID,
		NatsURL:         s.Config.NatsURL,
		NatsStream:      "E2E_" + s.runID,
		NatsSubject:     "e2e." + s.runID,
		BadgerFilepath:  s.T().TempDir(),
		SnowflakeNode:   1,
		QueueSize:       64,
	}
}

// Step prints a colorized header for a scenario step in the test logs.
func (s *BaseChatSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Join starts a live session for name, stopped at the end of the test.
func (s *BaseChatSuite) Join(name string) *session.Controller {
	controller := session.NewController(s.log, s.backend.Gateway, s.backend.Feed, session.Config{
		Identity:       domain.NewIdentity(name),
		HistoryTimeout: 5 * time.Second,
		SendTimeout:    5 * time.Second,
		Reconnect:      session.ReconnectPolicy{MaxAttempts: 3, InitialInterval: 50 * time.Millisecond},
	})
	s.Require().NoError(controller.Start(context.Background()))
	s.T().Cleanup(controller.Stop)
	s.Require().Eventually(func() bool {
		return controller.Status().State == domain.StateLive
	}, 5*time.Second, 10*time.Millisecond, "%s never went live", name)
	return controller
}

// Unique returns a body no other run can have produced.
func (s *BaseChatSuite) Unique(body string) string {
	return fmt.Sprintf("%s [%s]", body, uuid.NewString())
}

// WaitFor blocks until the view of controller holds body.
func (s *BaseChatSuite) WaitFor(controller *session.Controller, body string) domain.Message {
	var found domain.Message
	s.Require().Eventually(func() bool {
		for _, message := range controller.View() {
			if message.Body == body {
				found = message
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond, "message %q never reached the view", body)
	return found
}

func count(controller *session.Controller, body string) int {
	n := 0
	for _, message := range controller.View() {
		if message.Body == body {
			n++
		}
	}
	return n
}
