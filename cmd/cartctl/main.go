package main

import (
	"log/slog"
	"os"

	"github.com/artfolio/cartstore/cmd/cartctl/commands"
)

func main() {
	// Structured text logs on stderr so command output stays parseable
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: commands.LogLevel,
	}))
	slog.SetDefault(logger)

	commands.Execute()
}
