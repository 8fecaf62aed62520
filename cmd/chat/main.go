package main

import (
	"chat-sync/identity"
	"chat-sync/internal"
	"chat-sync/runtime/workers"
	"chat-sync/search"
	"chat-sync/session"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/term"
)

// Exit codes to provide meaningful status to the shell.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const debugEndpoint = "/inspect"

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the store backend, the session and the terminal workers.
// Every defer runs before the process exits.
func run() (int, error) {
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := internal.OpenBackend(ctx, config, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer backend.Close()

	if backend.DB != nil && config.DebugPort > 0 {
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, debugEndpoint))
		database.StartDebugServer(backend.DB, config.DebugPort, debugEndpoint, internal.MessageMapper)
	}

	user, err := identity.NewTerminalProvider(config.IdentityFile, logger).GetOrPromptUsername()
	if err != nil {
		return exitRuntime, fmt.Errorf("identity: %w", err)
	}

	index, err := search.NewIndex(logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = index.Close() }()

	colours := config.Colours && term.IsTerminal(int(os.Stdout.Fd()))
	renderer := workers.NewRenderer(os.Stdout, user, colours, config.QueueSize, logger)
	if sampler, err := workers.NewSelfSampler(); err != nil {
		logger.Warn("Process stats unavailable", "error", err)
	} else {
		renderer.WithProcessStats(sampler)
	}

	controller := session.NewController(logger, backend.Gateway, backend.Feed, session.Config{
		Identity:       user,
		QueueSize:      config.QueueSize,
		HistoryTimeout: config.HistoryTimeout,
		SendTimeout:    config.SendTimeout,
		Reconnect:      config.ReconnectPolicy(),
	})
	controller.OnViewChange(index.OnViewChange)
	controller.OnViewChange(renderer.ShowView)
	controller.OnNewMessage(renderer.ShowLatest)
	controller.OnStatus(renderer.StatusChanged)

	runCtx, quit := context.WithCancel(ctx)
	defer quit()

	lines := workers.NewLineSource(os.Stdin, logger)
	supervisor := workers.NewSupervisor(logger)
	supervisor.Add(
		renderer,
		workers.NewInputWorker(controller, index, renderer, lines.Lines(), quit, logger),
		workers.NewChannelCapacityWorker(logger, []workers.NamedChannel{
			{Name: "session", Channel: controller.Backlog()},
			renderer.Backlog(),
			lines.Backlog(),
		}, config.MetricInterval),
	)

	if err = controller.Start(runCtx); err != nil {
		return exitRuntime, err
	}
	renderer.ShowNotice("connected as %s, type /help for commands", user)

	supervisor.Run(runCtx)

	// The renderer is gone, release the session observers before stopping it.
	renderer.Close()
	controller.Stop()
	logger.Info("Chat closed", "session_id", controller.ID().String())
	return exitOK, nil
}
