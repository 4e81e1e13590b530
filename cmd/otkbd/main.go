package main

import "github.com/OpenTraceLab/OpenTraceKBD/cmd/otkbd/cmd"

func main() {
	cmd.Execute()
}
