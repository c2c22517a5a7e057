package main

import (
	"os"

	"github.com/encircle/slack-alerter/internal/pkg/app"
)

func main() {
	if err := app.Run(); err != nil {
		os.Exit(1)
	}
}
