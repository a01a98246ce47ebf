package main

import "github.com/h0tp-ftw/alarm-audio-detector/cmd/alarm-status/cmd"

func main() {
	cmd.Execute()
}
