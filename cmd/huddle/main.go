package main

import (
	"log/slog"

	"github.com/BioHazard786/huddle/internal/cli"
	"github.com/BioHazard786/huddle/internal/logging"
)

func main() {
	// Keep the terminal UI clean unless LOG_LEVEL asks for more.
	logging.Init(slog.LevelError)
	cli.Execute()
}
