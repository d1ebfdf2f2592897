// Command tileview inspects large images and drives a tile viewer over them.
package main

import (
	"fmt"
	"os"

	"github.com/gogpu/tileview/cmd/tileview/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
