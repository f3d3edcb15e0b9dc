// Package main provides the entry point for the codesnip CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/codesnip/cmd/codesnip/cmd"
	cserrors "github.com/Aman-CERP/codesnip/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, cserrors.FormatForCLI(err))
		os.Exit(1)
	}
}
