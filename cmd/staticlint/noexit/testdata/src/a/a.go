package main

import "os"

func main() {
	os.Exit(0) // allowed: this is main.main
}

func shutdown() {
	os.Exit(1) // want `os.Exit is only allowed in main.main`
}
