package main

import "github.com/example/opsched/cmd"

func main() {
	cmd.Execute()
}
