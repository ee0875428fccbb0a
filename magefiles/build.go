//go:build mage

// Package main provides build targets for tome using Mage.
//
// Usage:
//
//	mage build      Compile tome to bin/
//	mage test:all   Run every test
//	mage test:race  Run every test with the race detector
//	mage test:cover Write coverage.out and print the summary
//	mage lint       Run golangci-lint
//	mage clean      Remove build artifacts
//	mage install    Install tome to GOPATH/bin
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "tome"
	binaryDir  = "bin"
	cmdDir     = "./cmd/tome"
	versionVar = "github.com/mesh-intelligence/tome/internal/cli.Version"
)

// ldflags stamps the binary with the version from $TOME_VERSION or the
// nearest git tag.
func ldflags() string {
	version := os.Getenv("TOME_VERSION")
	if version == "" {
		if tag, err := sh.Output("git", "describe", "--tags", "--always"); err == nil {
			version = strings.TrimPrefix(tag, "v")
		}
	}
	if version == "" {
		return ""
	}
	return "-X " + versionVar + "=" + version
}

// Build compiles the tome binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-ldflags", ldflags(), "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	_ = os.Remove(coverProfile)
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
