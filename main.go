package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/phillip-england/punchaudit/internal/punchcli"
)

func main() {
	if err := punchcli.Execute(os.Args[1:]); err != nil {
		if errors.Is(err, punchcli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr)
			punchcli.PrintUsage(os.Stderr)
			os.Exit(2)
		}
		log.Fatal(err)
	}
}
