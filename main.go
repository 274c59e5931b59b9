package main

import "accidentbot/internal/app"

func main() {
	app.Main()
}
