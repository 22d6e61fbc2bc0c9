// Command rostergate runs the conditional authorization engine.
package main

import "github.com/rosterops/rostergate/cmd/rostergate/cmd"

func main() {
	cmd.Execute()
}
