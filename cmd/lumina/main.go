package main

import "github.com/rkirkendall/lumina/internal/cmd"

func main() {
	cmd.Execute()
}
