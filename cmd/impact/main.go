package main

import "github.com/emrgen/impact/cmd"

func main() {
	cmd.Execute()
}
