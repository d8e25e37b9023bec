package main

import "github.com/example/scribevault/cmd"

func main() {
	cmd.Execute()
}
