package main

import (
	"errors"
	"os"

	"github.com/okuzmin/a11ylens/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
