// The main package for the scholar-tracker executable.
package main

import (
	"os"

	"github.com/JakeFAU/scholar-tracker/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
