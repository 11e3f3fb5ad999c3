package main

import "github.com/aggrex/aggrex/cmd"

func main() {
	cmd.Execute()
}
