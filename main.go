package main

import (
	"fmt"
	"os"

	"rfm-segmenter/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
