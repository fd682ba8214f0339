package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"go.viam.com/rdk/rimage"

	"docscan"
)

func main() {
	var overlay bool
	var edges bool
	var margin float64

	flag.BoolVar(&overlay, "overlay", false, "Also write a debug image with the detected corners drawn")
	flag.BoolVar(&edges, "edges", false, "Also write the edge-magnitude debug image")
	flag.Float64Var(&margin, "margin", docscan.DefaultFallbackMargin, "Fallback inset in pixels when no document is detected")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] image_files...\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	var allErrs error
	for _, f := range files {
		if err := processFile(f, overlay, edges, margin); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", f, err)
			allErrs = multierr.Append(allErrs, fmt.Errorf("%s: %w", f, err))
			continue
		}
	}
	if allErrs != nil {
		os.Exit(1)
	}
}

func processFile(filename string, overlay, edges bool, margin float64) error {
	input, err := rimage.ReadImageFromFile(filename)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	quad, err := docscan.FindDocument(input)
	if errors.Is(err, docscan.ErrNoDocument) {
		fmt.Printf("%s: no document found, using fallback margin %.0f\n", filename, margin)
		quad = docscan.FallbackQuad(input.Bounds(), margin)
	} else if err != nil {
		return fmt.Errorf("detecting corners: %w", err)
	} else {
		fmt.Printf("%s: corners TL(%.0f,%.0f) TR(%.0f,%.0f) BR(%.0f,%.0f) BL(%.0f,%.0f)\n",
			filename,
			quad.TopLeft().X, quad.TopLeft().Y,
			quad.TopRight().X, quad.TopRight().Y,
			quad.BottomRight().X, quad.BottomRight().Y,
			quad.BottomLeft().X, quad.BottomLeft().Y)
	}

	out, err := docscan.Rectify(input, quad)
	if err != nil {
		return fmt.Errorf("rectifying: %w", err)
	}

	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	scanPath := base + "_scan" + ext
	if err := rimage.WriteImageToFile(scanPath, out); err != nil {
		return fmt.Errorf("writing %s: %w", scanPath, err)
	}
	fmt.Printf("%s: wrote %dx%d scan to %s\n", filename, out.Bounds().Dx(), out.Bounds().Dy(), scanPath)

	if overlay {
		overlayPath := base + "_corners" + ext
		if err := rimage.WriteImageToFile(overlayPath, docscan.DocumentDebugImage(input, quad)); err != nil {
			return fmt.Errorf("writing %s: %w", overlayPath, err)
		}
	}
	if edges {
		edgePath := base + "_edges" + ext
		if err := rimage.WriteImageToFile(edgePath, docscan.EdgeDebugImage(input)); err != nil {
			return fmt.Errorf("writing %s: %w", edgePath, err)
		}
	}

	return nil
}
