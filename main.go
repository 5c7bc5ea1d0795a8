package main

import (
	"modsync/cmd"
	"modsync/logger"

	_ "go.uber.org/automaxprocs/maxprocs"
)

func main() {
	logger.InitLogger()
	defer logger.Sync() // Ensure logs are flushed on exit
	cmd.Execute()
}
