package main

import (
	"os"

	"ticketera/internal/validation"
)

// go run ./scripts -url https://backend -email v@example.com -password ... [-sale V-1]
func main() {
	os.Exit(validation.Run(os.Args[1:]))
}
