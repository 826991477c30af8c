package main

import "github.com/fluxbase-eu/criteria/cli/cmd"

func main() {
	cmd.Execute()
}
