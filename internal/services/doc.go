// Package services defines the shared failure taxonomy for the render core.
//
// Every error leaving a subsystem is tagged with one of the sentinel markers
// so the daemon and API can distinguish rejected input from engine trouble
// from encoder failures without string matching.
package services
