package main

import "asset-streamer/cmd"

func main() {
	cmd.Execute()
}
