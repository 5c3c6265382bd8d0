package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Catalog searches the article catalog; an empty query lists recent articles.
func Catalog(query string) error {
	mg.Deps(Build)
	if query == "" {
		return sh.RunV("bin/"+binName, "catalog", "list")
	}
	return sh.RunV("bin/"+binName, "catalog", "search", query)
}
