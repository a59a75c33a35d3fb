package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/qwb00/ChatApp/internal/client"
	"github.com/qwb00/ChatApp/internal/config"
	pkglog "github.com/qwb00/ChatApp/pkg/log"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}
	if len(os.Args) > 1 {
		cfg.DirectoryAddress = os.Args[1]
	}

	pkglog.Init(pkglog.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})
	logger := pkglog.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	con := newConsole(os.Stdin, os.Stdout)
	driver := client.NewDriver(client.Config{
		DirectoryAddress: cfg.DirectoryAddress,
		RoomHost:         cfg.RoomHost,
	}, con, con)

	session, err := driver.Connect(ctx)
	if err != nil {
		if errors.Is(err, errInputClosed) {
			return
		}
		logger.Error().Err(err).Str("directory", cfg.DirectoryAddress).Msg("failed to join a chat")
		os.Exit(1)
	}

	if err := session.Run(ctx, con.lines); err != nil {
		if errors.Is(err, client.ErrRoomClosed) {
			con.println("Connection to the chat was closed.")
			os.Exit(1)
		}
		logger.Error().Err(err).Msg("chat session ended")
		os.Exit(1)
	}
}
