package main

import (
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"
	generic "go.viam.com/rdk/services/generic"

	"docscan"
)

func main() {
	module.ModularMain(
		resource.APIModel{API: camera.API, Model: docscan.DocCameraModel},
		resource.APIModel{API: generic.API, Model: docscan.ScannerModel},
	)
}
