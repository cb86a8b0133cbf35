package main

import "github.com/lbrandt/cedar/cmd"

func main() {
	cmd.Execute()
}
