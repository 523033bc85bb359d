package render

import "fmt"

// Style is the computed visual state of one layer at one sample instant.
type Style struct {
	Opacity   float64
	Transform string
	Hidden    bool
}

// StyleAt computes a layer's style purely from its animation descriptors and
// the sample time. Identical inputs always yield identical output; opacity
// stays within [0,1].
//
// Before an entrance's trigger time the layer is fully hidden. During the
// animation window opacity and transform interpolate per the named easing.
// After completion the layer holds its resting state until an exit trigger,
// then interpolates back toward hidden.
func StyleAt(layer *Layer, t, slideDuration float64) Style {
	if layer.Entrance != nil {
		start := triggerTime(layer.Entrance, slideDuration)
		switch {
		case t <= start:
			// The trigger instant itself is still fully hidden; the first
			// visible interpolation happens strictly after it.
			return Style{Opacity: 0, Hidden: true}
		case layer.Entrance.Duration > 0 && t < start+layer.Entrance.Duration:
			p := ease(layer.Entrance.Easing, (t-start)/layer.Entrance.Duration)
			return Style{
				Opacity:   clamp01(p),
				Transform: animTransform(layer.Entrance.Kind, 1-p),
			}
		}
	}

	if layer.Exit != nil {
		start := triggerTime(layer.Exit, slideDuration)
		switch {
		case t >= start+layer.Exit.Duration:
			return Style{Opacity: 0, Hidden: true}
		case t >= start:
			if layer.Exit.Duration <= 0 {
				return Style{Opacity: 0, Hidden: true}
			}
			p := ease(layer.Exit.Easing, (t-start)/layer.Exit.Duration)
			return Style{
				Opacity:   clamp01(1 - p),
				Transform: animTransform(layer.Exit.Kind, p),
			}
		}
	}

	return Style{Opacity: 1}
}

// triggerTime resolves an animation's start on the slide timeline.
func triggerTime(a *Animation, slideDuration float64) float64 {
	base := 0.0
	switch a.Trigger.Kind {
	case TriggerTime:
		base = a.Trigger.At
	case TriggerSlideEnd:
		base = slideDuration + a.Trigger.Offset
	}
	return base + a.Delay
}

// ease maps linear progress p in [0,1] through a named curve.
func ease(name string, p float64) float64 {
	p = clamp01(p)
	switch name {
	case "ease-in":
		return p * p
	case "ease-out":
		return 1 - (1-p)*(1-p)
	case "ease-in-out":
		if p < 0.5 {
			return 2 * p * p
		}
		return 1 - 2*(1-p)*(1-p)
	default: // "linear" and unknown names
		return p
	}
}

// animTransform renders the displacement for a given remaining distance
// d in [0,1], where 0 is the resting position.
func animTransform(kind string, d float64) string {
	if d <= 0 {
		return ""
	}
	switch kind {
	case AnimSlideLeft:
		return fmt.Sprintf("translateX(%.2f%%)", -100*d)
	case AnimSlideRight:
		return fmt.Sprintf("translateX(%.2f%%)", 100*d)
	case AnimSlideUp:
		return fmt.Sprintf("translateY(%.2f%%)", -100*d)
	case AnimSlideDown:
		return fmt.Sprintf("translateY(%.2f%%)", 100*d)
	case AnimZoom:
		return fmt.Sprintf("scale(%.4f)", 1-0.5*d)
	default: // fade and unknown kinds move nothing
		return ""
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
