package main

import (
	"fmt"

	"github.com/magefile/mage/mg"

	"github.com/pdiddy/article-bot/internal/container"
)

// Grobid groups the targets that manage the local GROBID container.
type Grobid mg.Namespace

// Up starts GROBID on port 8070, pulling the image when needed.
func (Grobid) Up() error {
	rt, err := container.DetectRuntime()
	if err != nil {
		return err
	}
	running, err := rt.Running(container.DefaultName)
	if err != nil {
		return err
	}
	if running {
		fmt.Printf("%s already running\n", container.DefaultName)
		return nil
	}
	if err := container.EnsureImage(rt, container.DefaultImage); err != nil {
		return err
	}
	id, err := rt.Start(container.Spec{})
	if err != nil {
		return err
	}
	fmt.Printf("Started %s with %s (%.12s)\n", container.DefaultName, rt.Name(), id)
	return nil
}

// Down stops the local GROBID container.
func (Grobid) Down() error {
	rt, err := container.DetectRuntime()
	if err != nil {
		return err
	}
	return rt.Stop(container.DefaultName)
}
