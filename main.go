// The main package for the scoutbot executable.
package main

import (
	"github.com/mbazhenov/scoutbot/cmd"
)

func main() {
	cmd.Execute()
}
