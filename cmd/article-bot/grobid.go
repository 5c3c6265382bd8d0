// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/article-bot/internal/container"
	"github.com/pdiddy/article-bot/internal/grobid"
)

var grobidCmd = &cobra.Command{
	Use:   "grobid",
	Short: "Manage a local GROBID container and check the configured server",
}

var grobidStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start GROBID in a Docker or Podman container",
	Long: `Start pulls the GROBID image when missing and runs it detached, publishing
the port of grobid.server. Nothing is done when the container already runs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := container.DetectRuntime()
		if err != nil {
			return err
		}
		image, _ := cmd.Flags().GetString("image")
		name, _ := cmd.Flags().GetString("name")

		running, err := rt.Running(name)
		if err != nil {
			return err
		}
		if running {
			fmt.Printf("%s is already running (%s)\n", name, rt.Name())
			return nil
		}
		if err := container.EnsureImage(rt, image); err != nil {
			return err
		}
		id, err := rt.Start(container.Spec{Image: image, Name: name, HostPort: serverPort(cfg.GROBID.Server)})
		if err != nil {
			return err
		}
		fmt.Printf("Started %s (%s %.12s)\n", name, rt.Name(), id)

		wait, _ := cmd.Flags().GetDuration("wait")
		if wait <= 0 {
			return nil
		}
		return waitAlive(cmd.Context(), wait)
	},
}

var grobidStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the local GROBID container",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := container.DetectRuntime()
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		if err := rt.Stop(name); err != nil {
			return err
		}
		fmt.Printf("Stopped %s\n", name)
		return nil
	},
}

var grobidStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the configured GROBID server is alive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := grobid.NewClient(cfg.GROBID, logger)
		if err := client.IsAlive(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("GROBID at %s is alive\n", cfg.GROBID.Server)
		return nil
	},
}

// waitAlive polls the configured server until it answers or d elapses.
func waitAlive(ctx context.Context, d time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	client := grobid.NewClient(cfg.GROBID, logger)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		if err := client.IsAlive(ctx); err == nil {
			fmt.Printf("GROBID at %s is alive\n", cfg.GROBID.Server)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("GROBID at %s not alive after %s", cfg.GROBID.Server, d)
		case <-ticker.C:
		}
	}
}

// serverPort returns the port of a server URL, 8070 when it has none.
func serverPort(server string) int {
	u, err := url.Parse(server)
	if err != nil {
		return 8070
	}
	if p, err := strconv.Atoi(u.Port()); err == nil {
		return p
	}
	return 8070
}

func init() {
	for _, c := range []*cobra.Command{grobidStartCmd, grobidStopCmd} {
		c.Flags().String("name", container.DefaultName, "container name")
	}
	grobidStartCmd.Flags().String("image", container.DefaultImage, "GROBID image")
	grobidStartCmd.Flags().Duration("wait", 2*time.Minute, "wait for the server to come up (0 to skip)")

	grobidCmd.AddCommand(grobidStartCmd, grobidStopCmd, grobidStatusCmd)
	rootCmd.AddCommand(grobidCmd)
}
