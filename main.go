// The main package for the elementcrawler executable.
package main

import (
	"github.com/JakeFAU/element-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
