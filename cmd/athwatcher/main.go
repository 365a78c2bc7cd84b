package main

import "ath-watcher/internal/cli"

func main() {
	cli.Execute()
}
