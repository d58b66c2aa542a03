//go:build mage

// Package main contains Mage build targets for papers developer tooling.
package main

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binDir  = "bin"
	binName = "papers"
	cmdPkg  = "./cmd/papers"
)

// Default target when mage runs without arguments.
var Default = Build

// Init creates the .secrets directory with owner-only permissions.
func Init() error {
	if err := os.MkdirAll(".secrets", 0o700); err != nil {
		return fmt.Errorf("creating .secrets: %w", err)
	}
	fmt.Println("Created .secrets/ (add zotero-api-key, zotero-user-id, openalex-api-key, datalab-api-key).")
	return nil
}

// Build compiles the CLI binary into bin/, stamping the version from git.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || version == "" {
		version = "dev"
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-ldflags", "-X main.version="+version, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s (%s)\n", out, version)
	return nil
}

// Test runs the unit tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Lint runs go vet.
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// Check runs lint and tests.
func Check() {
	mg.SerialDeps(Lint, Test)
}

// Clean removes build output.
func Clean() error {
	return sh.Rm(binDir)
}

// Stats prints Go production and test line counts.
func Stats() error {
	var prod, test int
	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); path != "." && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == binDir) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		n, err := countLines(path)
		if err != nil {
			return err
		}
		if strings.HasSuffix(path, "_test.go") {
			test += n
		} else {
			prod += n
		}
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("Lines of code (Go, production): %d\n", prod)
	fmt.Printf("Lines of code (Go, tests):      %d\n", test)
	return nil
}

// countLines counts non-blank lines in path.
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n := 0
	s := bufio.NewScanner(f)
	for s.Scan() {
		if strings.TrimSpace(s.Text()) != "" {
			n++
		}
	}
	return n, s.Err()
}
