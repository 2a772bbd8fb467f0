// Command terrain-gen generates terrain height fields with a diffusion
// denoiser.
//
// Usage:
//
//	go run ./cmd/terrain-gen [flags]
//
// Without -denoiser the run uses a synthetic reference denoiser, which is
// useful for checking the pipeline end to end without a model server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/terrain.diffusion/internal/config"
	"github.com/banshee-data/terrain.diffusion/internal/denoiser"
	"github.com/banshee-data/terrain.diffusion/internal/grid"
	"github.com/banshee-data/terrain.diffusion/internal/pipeline"
	"github.com/banshee-data/terrain.diffusion/internal/preview"
	"github.com/banshee-data/terrain.diffusion/internal/runlog"
	"github.com/banshee-data/terrain.diffusion/internal/version"
)

func main() {
	configPath := flag.String("config", "", "pipeline config file (.json, .yaml); built-in defaults when empty")
	denoiserAddr := flag.String("denoiser", "", "denoiser gRPC address; synthetic reference denoiser when empty")
	seed := flag.Int64("seed", -1, "noise seed; config seed or random when negative")
	seedB := flag.Int64("interpolate", -1, "second seed to interpolate towards")
	t := flag.Float64("t", 0.5, "interpolation parameter in [0, 1]")
	fromRun := flag.String("from-run", "", "run id whose heights seed generation from existing terrain")
	cols := flag.Int("cols", 0, "lattice columns; a single tile when zero")
	rows := flag.Int("rows", 1, "lattice rows")
	blendTiles := flag.Bool("blend", true, "blend lattice seams")
	pngPath := flag.String("png", "", "write a PNG preview to this path")
	htmlPath := flag.String("html", "", "write an HTML preview to this path")
	runlogPath := flag.String("runlog", "", "record runs to this sqlite ledger")
	list := flag.Int("list", 0, "list the newest runs in -runlog and exit")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg := config.EmptyPipelineConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	opts := pipeline.OptionsFromConfig(cfg)

	var store *runlog.Store
	if *runlogPath != "" {
		var err error
		if store, err = runlog.Open(*runlogPath); err != nil {
			log.Fatalf("Failed to open runlog: %v", err)
		}
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *list > 0 {
		if store == nil {
			log.Fatalf("-list requires -runlog")
		}
		listRuns(ctx, store, *list)
		return
	}

	if *seed < 0 {
		if s, ok := cfg.GetSeed(); ok {
			*seed = s
		} else {
			*seed = grid.RandomSeed()
		}
	}

	p, err := pipeline.New(opts, sessionFactory(cfg, *denoiserAddr, *seed))
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	if store != nil {
		p.SetRecorder(store)
	}

	var res *pipeline.Result
	switch {
	case *cols > 0:
		res, err = generateLattice(ctx, p, *cols, *rows, *seed, *blendTiles)
	case *fromRun != "":
		if store == nil {
			log.Fatalf("-from-run requires -runlog")
		}
		existing, lerr := store.LoadHeights(ctx, *fromRun)
		if lerr != nil {
			log.Fatalf("Failed to load run %s: %v", *fromRun, lerr)
		}
		res, err = p.GenerateFromExisting(ctx, existing, *seed)
	case *seedB >= 0:
		res, err = p.Interpolate(ctx, *seed, *seedB, *t)
	default:
		res, err = p.Generate(ctx, *seed)
	}
	if err != nil {
		log.Fatalf("Generation failed: %v", err)
	}

	st := res.Heights.Stats()
	log.Printf("Generated %s %dx%d seed=%d calls=%d in %s (min=%.4f max=%.4f mean=%.4f)",
		res.Kind, res.Heights.Width(), res.Heights.Height(), res.Seed, res.Calls, res.Duration,
		st.Min, st.Max, st.Mean)
	if res.RunID != "" {
		log.Printf("Recorded run %s", res.RunID)
	}

	title := fmt.Sprintf("%s seed %d", res.Kind, res.Seed)
	if *pngPath != "" {
		if err := preview.WritePNG(*pngPath, res.Heights, preview.Options{Title: title}); err != nil {
			log.Fatalf("Failed to write PNG: %v", err)
		}
		log.Printf("Wrote %s", *pngPath)
	}
	if *htmlPath != "" {
		f, err := os.Create(*htmlPath)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", *htmlPath, err)
		}
		if err := preview.WriteHTML(f, res.Heights, preview.Options{Title: title}); err != nil {
			f.Close()
			log.Fatalf("Failed to write HTML: %v", err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("Failed to close %s: %v", *htmlPath, err)
		}
		log.Printf("Wrote %s", *htmlPath)
	}
}

// sessionFactory dials addr once per pipeline call, or serves a synthetic
// reference target when addr is empty.
func sessionFactory(cfg *config.PipelineConfig, addr string, seed int64) pipeline.SessionFactory {
	if addr == "" {
		log.Printf("No -denoiser given, using the synthetic reference denoiser")
		target := denoiser.SyntheticTarget(cfg.GetModelWidth(), cfg.GetModelHeight(), seed)
		return pipeline.StaticSession(denoiser.NewReference(target))
	}
	return func() (pipeline.Session, error) {
		remote, err := denoiser.Dial(addr,
			denoiser.WithModel(cfg.GetModelName()),
			denoiser.WithTimeout(cfg.GetDenoiserTimeout()))
		if err != nil {
			return nil, err
		}
		return remote, nil
	}
}

func generateLattice(ctx context.Context, p *pipeline.Pipeline, cols, rows int, seed int64, blendTiles bool) (*pipeline.Result, error) {
	l, err := p.NewLattice(cols, rows)
	if err != nil {
		return nil, err
	}
	seeds := make([]int64, cols*rows)
	for i := range seeds {
		seeds[i] = seed + int64(i)
	}
	res, err := p.GenerateLattice(ctx, l, seeds)
	if err != nil {
		return nil, err
	}
	if !blendTiles {
		return res, nil
	}
	if err := p.BlendLattice(ctx, l); err != nil {
		return nil, err
	}
	res.Heights.Release()
	if res.Heights, err = l.Mosaic(); err != nil {
		return nil, err
	}
	return res, nil
}

func listRuns(ctx context.Context, store *runlog.Store, limit int) {
	runs, err := store.List(ctx, limit)
	if err != nil {
		log.Fatalf("Failed to list runs: %v", err)
	}
	fmt.Printf("%-36s  %-11s  %8s  %9s  %5s  %10s  %s\n", "ID", "KIND", "SEED", "SIZE", "CALLS", "DURATION", "CREATED")
	for _, r := range runs {
		fmt.Printf("%-36s  %-11s  %8d  %4dx%-4d  %5d  %10s  %s\n",
			r.ID, r.Kind, r.Seed, r.Width, r.Height, r.DenoiserCalls, r.Duration.Round(time.Millisecond), r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}
