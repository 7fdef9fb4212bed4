package main

import (
	"stash/cmd/cmd"
	"stash/internal/logger"
)

func main() {
	logger.Init()
	cmd.Execute()
}
