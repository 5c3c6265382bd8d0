// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container runs the local GROBID server in a Docker or Podman
// container for development and single-host deployments.
package container

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const (
	binDocker = "docker"
	binPodman = "podman"

	// DefaultImage is the CRF-only GROBID image; it needs no GPU.
	DefaultImage = "lfoppiano/grobid:0.8.1"

	// DefaultName is the container name used by Start and Stop.
	DefaultName = "article-bot-grobid"

	// grobidPort is the port GROBID listens on inside the image.
	grobidPort = 8070
)

// Spec describes a detached GROBID container.
type Spec struct {
	Image    string
	Name     string
	HostPort int
}

func (s Spec) withDefaults() Spec {
	if s.Image == "" {
		s.Image = DefaultImage
	}
	if s.Name == "" {
		s.Name = DefaultName
	}
	if s.HostPort == 0 {
		s.HostPort = grobidPort
	}
	return s
}

// Runtime provides container operations: checking availability, verifying
// images, and starting or stopping the named GROBID container.
type Runtime interface {
	// Name returns the runtime name ("docker" or "podman").
	Name() string

	// Available reports whether the runtime binary exists on PATH and
	// responds to an info command.
	Available() bool

	// ImageExists checks whether the named image exists locally.
	ImageExists(image string) error

	// Pull fetches image from its registry.
	Pull(image string) error

	// Running reports whether a container called name is running.
	Running(name string) (bool, error)

	// Start runs the container detached and removes it when it stops.
	// It returns the container id.
	Start(spec Spec) (string, error)

	// Stop stops the container called name.
	Stop(name string) error
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(name string, args ...string) error
	Output(name string, args ...string) ([]byte, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunSilent(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (o *osExecutor) Output(name string, args ...string) ([]byte, error) {
	out, err := exec.Command(name, args...).Output()
	var ee *exec.ExitError
	if errors.As(err, &ee) && len(ee.Stderr) > 0 {
		return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(ee.Stderr)))
	}
	return out, err
}

// runtime implements Runtime for a specific container binary. Both Docker
// and Podman share the same logic; they differ only in binary name and the
// subcommand used to check image existence.
type runtime struct {
	bin           string
	imageCheckCmd []string // e.g. ["image", "inspect"] for docker
	exec          executor
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available() bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(r.bin, "info") == nil
}

func (r *runtime) ImageExists(image string) error {
	args := make([]string, 0, len(r.imageCheckCmd)+1)
	args = append(args, r.imageCheckCmd...)
	args = append(args, image)

	if err := r.exec.RunSilent(r.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Pull(image string) error {
	if _, err := r.exec.Output(r.bin, "pull", image); err != nil {
		return fmt.Errorf("pulling %s with %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Running(name string) (bool, error) {
	out, err := r.exec.Output(r.bin, "ps", "--filter", "name=^"+name+"$", "--format", "{{.Names}}")
	if err != nil {
		return false, fmt.Errorf("listing %s containers: %w", r.bin, err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *runtime) Start(spec Spec) (string, error) {
	spec = spec.withDefaults()
	args := []string{
		"run", "-d", "--rm",
		"--name", spec.Name,
		"-p", fmt.Sprintf("%d:%d", spec.HostPort, grobidPort),
		spec.Image,
	}
	out, err := r.exec.Output(r.bin, args...)
	if err != nil {
		return "", fmt.Errorf("starting %s container %s: %w", r.bin, spec.Image, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (r *runtime) Stop(name string) error {
	if _, err := r.exec.Output(r.bin, "stop", name); err != nil {
		return fmt.Errorf("stopping %s container %s: %w", r.bin, name, err)
	}
	return nil
}

func newDockerRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binDocker,
		imageCheckCmd: []string{"image", "inspect"},
		exec:          exec,
	}
}

func newPodmanRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binPodman,
		imageCheckCmd: []string{"image", "exists"},
		exec:          exec,
	}
}

var defaultExec = &osExecutor{}

// DetectRuntime tries docker first, falls back to podman. Returns an error
// if neither runtime is available.
func DetectRuntime() (Runtime, error) {
	return detectRuntime(defaultExec)
}

func detectRuntime(exec executor) (Runtime, error) {
	docker := newDockerRuntime(exec)
	if docker.Available() {
		return docker, nil
	}

	podman := newPodmanRuntime(exec)
	if podman.Available() {
		return podman, nil
	}

	return nil, fmt.Errorf(
		"no container runtime available: neither %s nor %s found or operational",
		binDocker, binPodman,
	)
}

// EnsureImage pulls image when it is not present locally.
func EnsureImage(rt Runtime, image string) error {
	if rt.ImageExists(image) == nil {
		return nil
	}
	return rt.Pull(image)
}
