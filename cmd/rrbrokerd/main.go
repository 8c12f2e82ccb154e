// Package main is the entry point for the rendering-resource broker daemon.
package main

import (
	"os"

	"github.com/stacklok/rrbroker/cmd/rrbrokerd/app"
	"github.com/stacklok/rrbroker/pkg/logger"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}
