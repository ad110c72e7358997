package main

import "github.com/drgolem/playcore/cmd"

func main() {
	cmd.Execute()
}
