// Command studybot runs the study bot and its maintenance tools.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/studybot/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
