package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/indii/reelstudio/internal/config"
)

func main() {
	root := newRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(config.Version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
