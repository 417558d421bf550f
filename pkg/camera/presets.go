package camera

// Preset names for common capture requests
const (
	PresetLegacy  = "legacy"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
	Preset4K      = "4k"
	PresetFastest = "fastest"
	PresetLargest = "largest"
)

// Presets returns all available preset requests.
func Presets() map[string]Request {
	return map[string]Request{
		PresetLegacy:  LegacyRequest(),
		Preset720p:    HD720Request(),
		Preset1080p:   HD1080Request(),
		Preset4K:      UHD4KRequest(),
		PresetFastest: HighestFrameRate(),
		PresetLargest: HighestResolution(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetLegacy,
		Preset720p,
		Preset1080p,
		Preset4K,
		PresetFastest,
		PresetLargest,
	}
}

// GetPreset returns a preset request by name, or nil if not found.
func GetPreset(name string) *Request {
	presets := Presets()
	if req, ok := presets[name]; ok {
		return &req
	}
	return nil
}

// LegacyRequest returns the classic 640x480 webcam format.
// Nearly every UVC camera supports it.
func LegacyRequest() Request {
	return Exact(640, 480, 30)
}

// HD720Request returns 720p HD at 30 fps.
func HD720Request() Request {
	return Exact(1280, 720, 30)
}

// HD1080Request returns 1080p Full HD at 30 fps.
func HD1080Request() Request {
	return Exact(1920, 1080, 30)
}

// UHD4KRequest returns 4K UHD.
// Most USB cameras only reach 15 fps at this size.
func UHD4KRequest() Request {
	return Exact(3840, 2160, 15)
}
