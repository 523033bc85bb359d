package render

import (
	"strings"

	"slidecast/internal/services"
)

// Trigger kinds for layer animations.
const (
	TriggerImmediate = "immediate"
	TriggerTime      = "time"
	TriggerSlideEnd  = "slide-end"
)

// Animation kinds.
const (
	AnimFade       = "fade"
	AnimSlideLeft  = "slide-left"
	AnimSlideRight = "slide-right"
	AnimSlideUp    = "slide-up"
	AnimSlideDown  = "slide-down"
	AnimZoom       = "zoom"
)

// Trigger locates an animation on the slide timeline.
type Trigger struct {
	Kind string `json:"kind"`
	// At is the absolute start in seconds for the "time" kind.
	At float64 `json:"at,omitempty"`
	// Offset shifts relative to the slide end for the "slide-end" kind;
	// negative values start before the end.
	Offset float64 `json:"offset,omitempty"`
}

// Animation describes one entrance or exit transition.
type Animation struct {
	Kind     string  `json:"kind"`
	Duration float64 `json:"duration"`
	Delay    float64 `json:"delay,omitempty"`
	Easing   string  `json:"easing,omitempty"`
	Trigger  Trigger `json:"trigger"`
}

// Layer is one positioned visual element on a slide.
type Layer struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"` // "text" or "image"
	Text     string     `json:"text,omitempty"`
	Source   string     `json:"source,omitempty"` // media reference, validated before use
	X        int        `json:"x"`
	Y        int        `json:"y"`
	Width    int        `json:"width"`
	Height   int        `json:"height"`
	ZIndex   int        `json:"z_index,omitempty"`
	FontSize int        `json:"font_size,omitempty"`
	Color    string     `json:"color,omitempty"`
	Entrance *Animation `json:"entrance,omitempty"`
	Exit     *Animation `json:"exit,omitempty"`
}

// Job is one accepted render request. Immutable once validated.
type Job struct {
	ID             string  `json:"id"`
	SlideID        string  `json:"slide_id"`
	MediaReference string  `json:"media_reference,omitempty"` // slide background
	Layers         []Layer `json:"layers"`
	Duration       float64 `json:"duration"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	FPS            int     `json:"fps"`
	Format         string  `json:"format,omitempty"` // container, defaults from config
	Background     string  `json:"background,omitempty"`
}

// Validate rejects jobs whose numeric envelope cannot be rendered.
func (j *Job) Validate() error {
	fail := func(msg string) error {
		return services.Wrap(services.ErrValidation, "render", "validate job", msg, nil)
	}
	if strings.TrimSpace(j.SlideID) == "" {
		return fail("slide id required")
	}
	if j.Duration <= 0 {
		return fail("duration must be positive")
	}
	if j.Width <= 0 || j.Height <= 0 {
		return fail("viewport dimensions must be positive")
	}
	if j.FPS <= 0 {
		return fail("frame rate must be positive")
	}
	for i := range j.Layers {
		l := &j.Layers[i]
		if strings.TrimSpace(l.ID) == "" {
			return fail("layer id required")
		}
		if l.Kind != "text" && l.Kind != "image" {
			return fail("unknown layer kind " + l.Kind)
		}
	}
	return nil
}

// References collects every media reference the job would load.
func (j *Job) References() []string {
	var refs []string
	if strings.TrimSpace(j.MediaReference) != "" {
		refs = append(refs, j.MediaReference)
	}
	for i := range j.Layers {
		if src := strings.TrimSpace(j.Layers[i].Source); src != "" {
			refs = append(refs, src)
		}
	}
	return refs
}

// Result reports a finished render.
type Result struct {
	OutputPath string  `json:"output_path"`
	FrameCount int     `json:"frame_count"`
	Duration   float64 `json:"duration"`
}
