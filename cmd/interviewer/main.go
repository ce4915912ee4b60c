package main

import "github.com/iammorganparry/clive/apps/interviewer/internal/cli"

func main() {
	cli.Execute()
}
