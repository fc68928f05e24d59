package main

import (
	"log"

	kransite "github.com/promkran/kransite"
)

func main() {
	app := kransite.New(kransite.ConfigFromEnv())
	defer app.Close()

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}
