package version

// Version is the current version of the WarpDrop binaries.
// This value can be overridden at build time using:
//
//	go build -ldflags="-X 'github.com/BioHazard786/Warpdrop/internal/version.Version=v1.0.0'"
//
// GoReleaser sets it during release builds.
var Version = "dev"

// Commit is the git revision the binary was built from, when known.
var Commit = "unknown"
