package main

import "cudabuild/internal/cudabuild"

func main() {
	cudabuild.Main()
}
