package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	app "github.com/playgrid/tictactoe-server/internal"
	"github.com/playgrid/tictactoe-server/internal/config"
	"github.com/playgrid/tictactoe-server/internal/entity"
	"github.com/playgrid/tictactoe-server/internal/protocol"
	"github.com/playgrid/tictactoe-server/internal/ui"
	"github.com/playgrid/tictactoe-server/transport/websocket"
)

// main - entry point. The serve command runs the matchmaking server, the
// play command runs the terminal client.
func main() {
	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(os.Stderr, "recovered from panic: %v\n", err)
			os.Exit(1)
		}
	}()

	cmd := &cli.Command{
		Name:  "tictactoe-server",
		Usage: "two-player tic-tac-toe over websockets",
		Commands: []*cli.Command{
			serveCommand(),
			playCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the matchmaking server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "config.yml",
				Usage: "path to the yaml config file",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			conf := initConfig(cmd.String("config"))
			logger := initLogger(conf)

			if err := app.RunApp(logger, conf); err != nil {
				return fmt.Errorf("app run failed: %w", err)
			}

			return nil
		},
	}
}

func playCommand() *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "join a game as a terminal client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Value: "ws://localhost:8081/ws",
				Usage: "websocket url of the game server",
			},
			&cli.StringFlag{
				Name:  "name",
				Value: "player",
				Usage: "display name",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runClient(ctx, cmd.String("server"), cmd.String("name"))
		},
	}
}

func runClient(ctx context.Context, serverURL, name string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	term := ui.NewTerminal(os.Stdin, os.Stdout)

	client, err := websocket.Dial(ctx, serverURL, logger)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer client.Close()

	if err = client.Join(name); err != nil {
		return fmt.Errorf("failed to join: %w", err)
	}

	term.ShowInfo(fmt.Sprintf("connected to %s as %s", serverURL, name))

	events := websocket.Events{
		OnWaiting: func(message, symbol string) {
			term.ShowInfo(fmt.Sprintf("%s (you play %s)", message, symbol))
		},
		OnGameStart: func(payload *protocol.GameStartPayload) {
			term.ShowInfo(fmt.Sprintf("game started, %s moves first", payload.StartingSymbol))
		},
		OnState: func(view *entity.GameStateView) {
			term.RenderBoard(view.Board)
			if !view.IsGameOver {
				term.ShowInfo(fmt.Sprintf("turn: %s", view.CurrentPlayer))
			}
		},
		OnYourTurn: func(_ *entity.GameStateView) (int, int, bool) {
			return term.PromptMove()
		},
		OnGameEnd: func(payload *protocol.GameEndPayload) {
			term.RenderBoard(payload.FinalBoard)
			term.ShowOutcome(payload.Winner, client.Player().Symbol)
		},
		OnError: func(message string) {
			term.ShowError(message)
		},
	}

	if err = client.Listen(ctx, events); err != nil {
		return fmt.Errorf("connection lost: %w", err)
	}

	return nil
}

// initialize config.
func initConfig(path string) *config.Config {
	if !filepath.IsAbs(path) {
		baseDir, err := os.Getwd()
		if err != nil {
			panic(fmt.Errorf("failed to get current directory: %w", err))
		}
		path = filepath.Join(baseDir, path)
	}

	return config.MustLoad(path)
}

// initialize logger.
func initLogger(conf *config.Config) *slog.Logger {
	var level slog.Level

	switch conf.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
