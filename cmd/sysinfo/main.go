package main

import "github.com/Dicklesworthstone/sysinfo/internal/cli"

func main() {
	cli.Execute()
}
