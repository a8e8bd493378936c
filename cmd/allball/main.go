package main

import (
	"os"

	"horse.fit/allball/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
