package main

import "rowsync-core/internal/syncd/cmd"

func main() {
	cmd.Execute()
}
