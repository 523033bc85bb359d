// Package render turns one slide job into a video file: it synthesizes the
// slide document, computes per-layer styles as a pure function of time,
// captures a frame per sample instant through an acquired browser session,
// and streams the frames into the encoder in presentation order.
package render
