// Package encoding bridges captured frames to an external ffmpeg process.
// Frames are piped to stdin in presentation order; the pipe's own
// backpressure paces capture against encoding speed.
package encoding
