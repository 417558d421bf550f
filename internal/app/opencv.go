//go:build opencv

package app

import (
	"github.com/teslashibe/go-flowcam/pkg/camera"
	"github.com/teslashibe/go-flowcam/pkg/camera/opencv"
)

func registerOpenCV(r *camera.Registry) {
	r.Register(camera.BackendOpenCV, opencv.NewOpener())
}
