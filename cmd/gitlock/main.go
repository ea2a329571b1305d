package main

import (
	"github.com/PinkPanter/gitlock/internal/cli"
	"github.com/PinkPanter/gitlock/internal/sentry"
)

func main() {
	defer sentry.RecoverPanic()
	cli.Execute()
}
