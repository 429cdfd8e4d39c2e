package main

import "github.com/huttala/ping-delayer/cmd"

func main() {
	cmd.Execute()
}
