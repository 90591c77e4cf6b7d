package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Override92/tid3/internal/coverart"
	"github.com/Override92/tid3/internal/tagio"
)

// runArt manages embedded front covers. It needs no database or source
// registry, so it never constructs the full app.
func runArt(args []string) error {
	fs := flag.NewFlagSet("art", flag.ExitOnError)
	fromURL := fs.String("from-url", "", "fetch the cover from a URL and embed it")
	fromFile := fs.String("from-file", "", "embed a local image file as the cover")
	extract := fs.String("extract", "", "write the embedded cover to the given file")
	probe := fs.Bool("probe", false, "with -from-url, only report the remote cover's dimensions")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("art: exactly one audio file expected")
	}
	path := fs.Arg(0)
	if !tagio.IsSupported(path) {
		return fmt.Errorf("unsupported file type: %s", path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *fromURL != "" && *probe:
		info, err := coverart.ProbeRemote(ctx, *fromURL)
		if err != nil {
			return fmt.Errorf("probing cover: %w", err)
		}
		fmt.Printf("remote cover: %dx%d, %d bytes\n", info.Width, info.Height, info.FileSize)
		if coverart.IsLowResolution(info.Width, info.Height) {
			fmt.Println("warning: cover is below 500x500")
		}
		return nil
	case *fromURL != "":
		return embedFromURL(ctx, path, *fromURL)
	case *fromFile != "":
		data, err := os.ReadFile(*fromFile)
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}
		return embedCover(path, data)
	case *extract != "":
		data, err := coverart.Extract(path)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return fmt.Errorf("no embedded cover in %s", path)
		}
		if err := os.WriteFile(*extract, data, 0o644); err != nil {
			return fmt.Errorf("writing cover: %w", err)
		}
		fmt.Printf("wrote %d bytes to %s\n", len(data), *extract)
		return nil
	default:
		return printEmbedded(path)
	}
}

func embedFromURL(ctx context.Context, path, rawURL string) error {
	data, err := coverart.FetchRemote(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("fetching cover: %w", err)
	}
	return embedCover(path, data)
}

func embedCover(path string, data []byte) error {
	if w, h, err := coverart.Dimensions(bytes.NewReader(data)); err == nil && coverart.IsLowResolution(w, h) {
		fmt.Printf("warning: cover is low resolution (%dx%d)\n", w, h)
	}
	if err := coverart.Embed(path, data); err != nil {
		return fmt.Errorf("embedding cover: %w", err)
	}
	return printEmbedded(path)
}

func printEmbedded(path string) error {
	w, h, err := coverart.EmbeddedDimensions(path)
	if err != nil {
		return err
	}
	if w == 0 && h == 0 {
		fmt.Println("no embedded cover")
		return nil
	}
	fmt.Printf("embedded cover: %dx%d\n", w, h)
	return nil
}
