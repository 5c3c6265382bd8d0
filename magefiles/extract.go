package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Extract sends one PDF through the configured GROBID server and prints the
// TEI and digest paths.
func Extract(pdf string) error {
	mg.Deps(Build)
	return sh.RunV("bin/"+binName, "extract", pdf)
}
