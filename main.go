package main

import "github.com/snapmatch/snapmatch/cmd"

func main() {
	cmd.Execute()
}
