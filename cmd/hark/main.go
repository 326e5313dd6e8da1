// Command hark is the voice-activated command dispatcher daemon and its
// lifecycle CLI.
package main

import (
	"os"

	"github.com/MrWong99/hark/cmd/hark/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
