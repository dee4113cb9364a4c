package main

import "github.com/oks-citadel/svcauth/cmd"

func main() {
	cmd.Execute()
}
