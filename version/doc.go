// Package version reports the build version of cmdproxy.
//
// Version, commit and build time are set at compile time:
//
//	go build -ldflags "-X github.com/kbukum/cmdproxy/version.Version=1.0.0"
package version
