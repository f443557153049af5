package main

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/example/checkin-scheduler/cmd"
)

func main() {
	// .env is optional; real environment variables take precedence
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not load .env", slog.String("error", err.Error()))
	}
	cmd.Execute()
}
