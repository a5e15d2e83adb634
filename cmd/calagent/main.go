package main

// version is set by the release pipeline.
var version = "dev"

func main() {
	execute(version)
}
