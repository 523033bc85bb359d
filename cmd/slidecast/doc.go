// Command slidecast is the control CLI for the slidecast render daemon. It
// submits render jobs over the daemon's HTTP API and reports their status.
package main
