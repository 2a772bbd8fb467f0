// Command denoiser-server serves a synthetic reference denoiser over gRPC.
//
// It lets terrain-gen and other clients exercise the remote denoiser path
// without a trained model. Every request is answered with the noise that
// reconstructs a fixed synthetic target.
//
// Usage:
//
//	go run ./cmd/denoiser-server [flags]
//
// Flags:
//
//	-addr    Listen address (default: localhost:50061)
//	-model   Model name clients must ask for (default: any)
//	-width   Target width (default: 256)
//	-height  Target height (default: 256)
//	-seed    Seed for the synthetic target (default: 1)
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/terrain.diffusion/internal/denoiser"
	"github.com/banshee-data/terrain.diffusion/internal/version"
)

func main() {
	addr := flag.String("addr", "localhost:50061", "Listen address")
	model := flag.String("model", "", "Model name clients must request; any when empty")
	width := flag.Int("width", 256, "Target width")
	height := flag.Int("height", 256, "Target height")
	seed := flag.Int64("seed", 1, "Seed for the synthetic target")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	log.Printf("Starting reference denoiser %s on %s", version.String(), *addr)
	log.Printf("Configuration: %dx%d target, seed %d, model %q", *width, *height, *seed, *model)

	target := denoiser.SyntheticTarget(*width, *height, *seed)
	counter := &denoiser.Counter{Denoiser: denoiser.NewReference(target)}
	server := denoiser.NewServer(denoiser.ServerConfig{ListenAddr: *addr, Model: *model}, counter)
	if err := server.Start(); err != nil {
		log.Fatalf("Failed to start denoiser server: %v", err)
	}

	log.Printf("Server ready, waiting for connections...")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("Shutting down after %d denoise calls...", counter.Calls())
	server.Stop()
}
