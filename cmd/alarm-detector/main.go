package main

import "github.com/h0tp-ftw/alarm-audio-detector/cmd/alarm-detector/cmd"

func main() {
	cmd.Execute()
}
