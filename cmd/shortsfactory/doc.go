// Package main hosts the shortsfactory CLI entrypoint and command graph.
//
// The Cobra command tree runs the daemon, drives one-off pipeline cycles and
// single jobs against the local record store, drops files into the inbox, and
// scaffolds configuration. The daemon's HTTP surface is the remote control
// path; these commands work directly on the data directory.
//
// Keep this package lean: add new functionality to the internal packages
// first, then surface it through dedicated commands or flags here.
package main
