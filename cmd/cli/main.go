package main

import "eggmanager/internal/cli/cmd"

func main() {
	cmd.Execute()
}
