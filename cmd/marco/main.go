package main

import "github.com/koscakluka/ema-voice/internal/cli"

func main() {
	cli.Execute()
}
