// internal/version/version.go
package version

// Version is stamped by the release build (-ldflags "-X ...").
var Version = "0.3.0-dev"
