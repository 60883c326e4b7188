package main

import "github.com/Yates-Labs/llmkit/cmd"

func main() {
	cmd.Execute()
}
