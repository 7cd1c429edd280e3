//go:build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binary = "spellbee"

// Default target to run when none is specified.
var Default = Build

// Build compiles the server binary.
func Build() error {
	mg.Deps(Minify)
	return sh.RunV("go", "build", "-o", binary, ".")
}

// Minify writes minified templates and static assets to dist/.
func Minify() error {
	return sh.RunV("go", "run", "./cmd/minify", "-root", ".", "-out", "dist")
}

// Test runs all tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Vet runs go vet.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Run starts the development server.
func Run() error {
	return sh.RunWithV(map[string]string{"GIN_MODE": "debug"}, "go", "run", ".")
}

// Clean removes build artifacts.
func Clean() error {
	for _, p := range []string{binary, "dist"} {
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	return nil
}
