// Package main is the entry point for rrbctl, the rendering-resource
// broker's admin CLI.
package main

import (
	"os"

	"github.com/stacklok/rrbroker/cmd/rrbctl/app"
	"github.com/stacklok/rrbroker/pkg/logger"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}
