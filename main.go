package main

import "property-scraper/cmd"

func main() {
	cmd.Execute()
}
