//go:build !opencv

package app

import "github.com/teslashibe/go-flowcam/pkg/camera"

// registerOpenCV is a no-op without the opencv build tag.
func registerOpenCV(r *camera.Registry) {}
