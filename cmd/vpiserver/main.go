package main

import "github.com/OpenTraceLab/OpenTraceVPI/cmd/vpiserver/cmd"

func main() {
	cmd.Execute()
}
