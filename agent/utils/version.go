package utils

// Version is the current version of the protocol engine.
var Version = "0.1.0"
