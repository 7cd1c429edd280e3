package main

import (
	"flag"
	"fmt"
	"log"

	"spellbee/internal/assets"
)

func main() {
	var (
		root = flag.String("root", ".", "Directory containing templates/ and static/")
		dst  = flag.String("out", "dist", "Output directory")
	)
	flag.Parse()

	results, err := assets.Build(*root, *dst)
	if err != nil {
		log.Fatalf("Minification failed: %v", err)
	}
	for _, r := range results {
		fmt.Println(r)
	}
	fmt.Printf("Minified %d files into %s\n", len(results), *dst)
}
