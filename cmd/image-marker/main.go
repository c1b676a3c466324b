package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	imagemarker "github.com/menta2k/image-marker"
)

func main() {
	root := newRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(imagemarker.Version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
