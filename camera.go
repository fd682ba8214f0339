package docscan

import (
	"context"
	"errors"
	"fmt"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/data"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"
)

var DocCameraModel = family.WithModel("doc-camera")

func init() {
	resource.RegisterComponent(camera.API, DocCameraModel,
		resource.Registration[camera.Camera, *DocCameraConfig]{
			Constructor: newDocCamera,
		},
	)
}

type DocCameraConfig struct {
	Input string // source camera pointed at the document

	// FallbackMargin is the inset from the frame edges used when no
	// document is detected. Zero means unset and selects
	// DefaultFallbackMargin; a literal zero-pixel inset is not
	// configurable.
	FallbackMargin float64 `json:"fallback-margin"`
}

func (cfg *DocCameraConfig) Validate(path string) ([]string, []string, error) {
	if cfg.Input == "" {
		return nil, nil, fmt.Errorf("need an input")
	}
	if cfg.FallbackMargin < 0 {
		return nil, nil, fmt.Errorf("fallback-margin cannot be negative")
	}
	return []string{cfg.Input}, nil, nil
}

func newDocCamera(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (camera.Camera, error) {
	conf, err := resource.NativeConfig[*DocCameraConfig](rawConf)
	if err != nil {
		return nil, err
	}

	return NewDocCamera(ctx, deps, rawConf.ResourceName(), conf, logger)
}

// NewDocCamera wraps an input camera and serves the rectified document
// found in its frames. Frames with no detectable document fall back to
// the whole frame minus a fixed margin.
func NewDocCamera(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *DocCameraConfig, logger logging.Logger) (camera.Camera, error) {
	var err error

	dc := &DocCamera{
		name:   name,
		conf:   conf,
		logger: logger,
		margin: marginOrDefault(conf.FallbackMargin),
	}

	dc.input, err = camera.FromProvider(deps, conf.Input)
	if err != nil {
		return nil, err
	}

	return dc, nil
}

type DocCamera struct {
	resource.AlwaysRebuild
	resource.TriviallyCloseable

	name   resource.Name
	conf   *DocCameraConfig
	logger logging.Logger
	margin float64

	input camera.Camera
}

func (dc *DocCamera) Image(ctx context.Context, mimeType string, extra map[string]interface{}) ([]byte, camera.ImageMetadata, error) {
	return camera.GetImageFromGetImages(ctx, nil, dc, extra, nil)
}

func (dc *DocCamera) Images(ctx context.Context, filterSourceNames []string, extra map[string]interface{}) ([]camera.NamedImage, resource.ResponseMetadata, error) {
	ni, rm, err := dc.input.Images(ctx, nil, extra)
	if err != nil {
		return nil, rm, err
	}

	if len(ni) == 0 {
		return nil, rm, fmt.Errorf("no images returned from input camera")
	}

	srcImg, err := ni[0].Image(ctx)
	if err != nil {
		return nil, rm, err
	}

	quad, err := FindDocument(srcImg)
	if errors.Is(err, ErrNoDocument) {
		dc.logger.Debugf("no document in frame, using fallback margin %v", dc.margin)
		quad = FallbackQuad(srcImg.Bounds(), dc.margin)
	} else if err != nil {
		return nil, rm, err
	}

	dst, err := Rectify(srcImg, quad)
	if err != nil {
		return nil, rm, err
	}

	result, err := camera.NamedImageFromImage(dst, ni[0].SourceName, "", data.Annotations{})
	if err != nil {
		return nil, rm, err
	}
	return []camera.NamedImage{result}, rm, nil
}

func (dc *DocCamera) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return nil, fmt.Errorf("DoCommand not supported")
}

func (dc *DocCamera) NextPointCloud(ctx context.Context, extra map[string]interface{}) (pointcloud.PointCloud, error) {
	return nil, fmt.Errorf("NextPointCloud not supported")
}

func (dc *DocCamera) Properties(ctx context.Context) (camera.Properties, error) {
	return camera.Properties{}, nil
}

func (dc *DocCamera) Geometries(ctx context.Context, extra map[string]interface{}) ([]spatialmath.Geometry, error) {
	return nil, nil
}

func (dc *DocCamera) Name() resource.Name {
	return dc.name
}
