package main

import "github.com/condoplex/facegate/cmd"

func main() {
	cmd.Execute()
}
