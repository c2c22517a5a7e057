package app

import "github.com/encircle/slack-alerter/internal/pkg/cmd"

// Run runs the command
func Run() error {
	cmd := cmd.NewRootCommand()
	return cmd.Execute()
}
