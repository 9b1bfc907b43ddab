package app

const (
	Name    = "release-export-relay"
	Version = "0.4.0"
)
