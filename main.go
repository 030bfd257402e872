// The main package for the aozorafetch executable.
package main

import (
	"github.com/aozoratools/aozorafetch/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
