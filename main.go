package main

import "github.com/tripmarket/placelens/cmd"

func main() {
	cmd.Execute()
}
