package main

import "github.com/gamewarden/gamewarden/cmd/gamewarden/cmd"

func main() {
	cmd.Execute()
}
