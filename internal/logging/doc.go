// Package logging builds the slog loggers used throughout slidecast.
//
// It offers a human-oriented console handler that hoists the component
// attribute into the line prefix, a JSON handler for machine consumption, and
// small helpers for standardized attribute keys. Construct loggers through
// NewFromConfig so file output lands under the configured log directory.
package logging
