package docscan

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/golang/geo/r2"
	"github.com/mitchellh/mapstructure"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/rimage"
	generic "go.viam.com/rdk/services/generic"
)

var ScannerModel = family.WithModel("scanner")

func init() {
	resource.RegisterService(generic.API, ScannerModel,
		resource.Registration[resource.Resource, *ScannerConfig]{
			Constructor: newScanner,
		},
	)
}

type ScannerConfig struct {
	Camera string

	// FallbackMargin matches DocCameraConfig: zero means unset and
	// selects DefaultFallbackMargin.
	FallbackMargin float64 `json:"fallback-margin"`
}

func (cfg *ScannerConfig) Validate(path string) ([]string, []string, error) {
	if cfg.Camera == "" {
		return nil, nil, fmt.Errorf("need a camera")
	}
	if cfg.FallbackMargin < 0 {
		return nil, nil, fmt.Errorf("fallback-margin cannot be negative")
	}
	return []string{cfg.Camera}, nil, nil
}

// scanner is the interactive side of the pipeline: "detect" proposes
// corners the user can adjust, "scan" rectifies with the final corners
// and writes the page to disk.
type scanner struct {
	resource.AlwaysRebuild
	resource.TriviallyCloseable

	name   resource.Name
	logger logging.Logger
	conf   *ScannerConfig
	margin float64

	cam camera.Camera
}

func newScanner(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*ScannerConfig](rawConf)
	if err != nil {
		return nil, err
	}

	return NewScanner(ctx, deps, rawConf.ResourceName(), conf, logger)
}

func NewScanner(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *ScannerConfig, logger logging.Logger) (resource.Resource, error) {
	s := &scanner{
		name:   name,
		logger: logger,
		conf:   conf,
		margin: marginOrDefault(conf.FallbackMargin),
	}

	var err error
	s.cam, err = camera.FromProvider(deps, conf.Camera)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *scanner) Name() resource.Name {
	return s.name
}

// ----

type ScanCmd struct {
	Output  string
	Corners [][]float64 // optional user-adjusted corners, 4 of [x, y]
}

type cmdStruct struct {
	Detect bool
	Scan   ScanCmd
}

func (s *scanner) DoCommand(ctx context.Context, cmdMap map[string]interface{}) (map[string]interface{}, error) {
	var cmd cmdStruct
	err := mapstructure.Decode(cmdMap, &cmd)
	if err != nil {
		return nil, err
	}

	if cmd.Detect {
		return s.detect(ctx)
	}

	if cmd.Scan.Output != "" {
		return s.scan(ctx, cmd.Scan)
	}

	return nil, fmt.Errorf("bad cmd %v", cmdMap)
}

func (s *scanner) detect(ctx context.Context) (map[string]interface{}, error) {
	img, err := s.frame(ctx)
	if err != nil {
		return nil, err
	}

	quad, err := FindDocument(img)
	found := true
	if errors.Is(err, ErrNoDocument) {
		found = false
		quad = FallbackQuad(img.Bounds(), s.margin)
	} else if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"found":   found,
		"corners": quadToList(quad),
	}, nil
}

func (s *scanner) scan(ctx context.Context, cmd ScanCmd) (map[string]interface{}, error) {
	img, err := s.frame(ctx)
	if err != nil {
		return nil, err
	}

	var quad Quad
	if len(cmd.Corners) > 0 {
		quad, err = quadFromList(cmd.Corners)
		if err != nil {
			return nil, err
		}
	} else {
		quad, err = FindDocument(img)
		if errors.Is(err, ErrNoDocument) {
			quad = FallbackQuad(img.Bounds(), s.margin)
		} else if err != nil {
			return nil, err
		}
	}

	out, err := Rectify(img, quad)
	if err != nil {
		return nil, err
	}

	err = rimage.WriteImageToFile(cmd.Output, out)
	if err != nil {
		return nil, err
	}

	s.logger.Infof("scanned %dx%d page to %s", out.Bounds().Dx(), out.Bounds().Dy(), cmd.Output)

	return map[string]interface{}{
		"output": cmd.Output,
		"width":  out.Bounds().Dx(),
		"height": out.Bounds().Dy(),
	}, nil
}

func (s *scanner) frame(ctx context.Context) (image.Image, error) {
	ni, _, err := s.cam.Images(ctx, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(ni) == 0 {
		return nil, fmt.Errorf("no images returned from camera")
	}
	return ni[0].Image(ctx)
}

func quadToList(q Quad) [][]float64 {
	out := make([][]float64, 4)
	for i, p := range q {
		out[i] = []float64{p.X, p.Y}
	}
	return out
}

func quadFromList(corners [][]float64) (Quad, error) {
	if len(corners) != 4 {
		return Quad{}, fmt.Errorf("need 4 corners, got %d", len(corners))
	}
	var pts [4]r2.Point
	for i, c := range corners {
		if len(c) != 2 {
			return Quad{}, fmt.Errorf("corner %d: need [x, y], got %v", i, c)
		}
		pts[i] = r2.Point{X: c[0], Y: c[1]}
	}
	return OrderCorners(pts), nil
}
