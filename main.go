package main

import "github.com/quietridge/boxmaker/cmd"

func main() {
	cmd.Execute()
}
