package main

import "hobbyhub-backend/cmd/shift-cli/cmd"

func main() {
	cmd.Execute()
}
