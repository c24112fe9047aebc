package main

import (
	"fmt"
	"os"

	"github.com/conneroisu/livepen/cmd"
	"github.com/conneroisu/livepen/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errors.FormatError(err))
		os.Exit(1)
	}
}
