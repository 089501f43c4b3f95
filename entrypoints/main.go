package main

import (
	"github.com/papyr-app/papyr-api/cmd"
)

func main() {
	cmd.Execute()
}
