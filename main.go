// The main package for the snapfresh executable.
package main

import (
	"github.com/snapfresh/snapfresh/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
