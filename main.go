package main

import "github.com/bashirn3/cursor-azure-claude/cmd"

func main() {
	cmd.Execute()
}
