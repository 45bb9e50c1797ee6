package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/harrison/suiterun/internal/cmd"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		// The summary already reported the failed tests.
		if !errors.Is(err, cmd.ErrTestsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
