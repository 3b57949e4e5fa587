package main

import (
	"os"

	"github.com/agromano/identity-gate/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
