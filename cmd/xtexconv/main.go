// Command xtexconv converts guest texture dumps to PNG or TIFF images.
//
// Each dump holds the guest memory of one texture starting at its base
// address. All dumps share the texture description given by the flags:
//
//	xtexconv -format k_8_8_8_8 -width 256 -height 256 -tiled -endian 8in32 tex0.bin tex1.bin
//
// With -cache the dumps are uploaded through the texture cache on the
// software device and read back, exercising the same path the renderer uses.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime"

	"github.com/gogpu/xenostex"
)

func main() {
	var (
		format    = flag.String("format", "k_8_8_8_8", "guest texture format (hardware name)")
		width     = flag.Uint("width", 0, "texture width in texels")
		height    = flag.Uint("height", 1, "texture height in texels")
		dimension = flag.String("dimension", "2d", "texture dimension: 1d, 2d or cube")
		tiled     = flag.Bool("tiled", false, "guest data uses the 32x32 tiled layout")
		endian    = flag.String("endian", "none", "byte swap mode: none, 8in16, 8in32 or 16in32")
		pitch     = flag.Uint("pitch", 0, "guest row pitch in texels (0 derives it from width)")
		outDir    = flag.String("out", ".", "output directory")
		useTIFF   = flag.Bool("tiff", false, "write TIFF instead of PNG")
		jobs      = flag.Int("j", runtime.GOMAXPROCS(0), "number of parallel conversions")
		viaCache  = flag.Bool("cache", false, "upload through the texture cache on the software device")
		stats     = flag.Bool("stats", false, "print per-file conversion times")
		verbose   = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *verbose {
		xenostex.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	info, err := parseInfo(*format, *dimension, *endian, uint32(*width), uint32(*height), uint32(*pitch), *tiled)
	if err != nil {
		log.Fatalf("Invalid texture: %v", err)
	}

	opts := options{
		info:     info,
		outDir:   *outDir,
		tiff:     *useTIFF,
		viaCache: *viaCache,
		jobs:     *jobs,
	}
	results, err := run(context.Background(), opts, flag.Args())
	if *stats {
		for _, r := range results {
			if r.output != "" {
				fmt.Printf("%s\t%s\t%v\n", r.input, r.output, r.elapsed)
			}
		}
	}
	if err != nil {
		log.Fatalf("Conversion failed: %v", err)
	}
	log.Printf("Converted %d dumps (%s)\n", len(results), info)
}
