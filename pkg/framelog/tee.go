package framelog

import (
	"github.com/teslashibe/go-flowcam/pkg/camera"
)

// Tee returns a device that records every successful capture of dev to w.
// Recording failures are passed to onErr, when set, and never fail the
// capture. Closing the returned device closes dev but not w.
func Tee(dev camera.Device, w *Writer, onErr func(error)) camera.Device {
	return &teeDevice{Device: dev, w: w, onErr: onErr}
}

type teeDevice struct {
	camera.Device
	w     *Writer
	onErr func(error)
}

func (t *teeDevice) Capture() (camera.RawFrame, error) {
	f, err := t.Device.Capture()
	if err != nil {
		return f, err
	}
	if rerr := t.w.Record(f); rerr != nil && t.onErr != nil {
		t.onErr(rerr)
	}
	return f, nil
}

// TeeOpener wraps every device opened by o with Tee.
func TeeOpener(o camera.Opener, w *Writer, onErr func(error)) camera.Opener {
	return camera.OpenerFunc(func(index int, req camera.Request) (camera.Device, error) {
		dev, err := o.Open(index, req)
		if err != nil {
			return nil, err
		}
		return Tee(dev, w, onErr), nil
	})
}
