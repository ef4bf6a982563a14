package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes. A run that finished with failed tiles is distinct from one that
// could not run at all.
const (
	exitOK          = 0
	exitError       = 1
	exitTilesFailed = 2
)

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errTilesFailed):
		return exitTilesFailed
	default:
		return exitError
	}
}

func main() {
	// 开始安全退出任务
	InitSafeExit()
	err := rootCmd.Execute()
	if err != nil {
		if conf != nil {
			log.Errorf("Error: %s", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
	}
	os.Exit(exitCode(err))
}
