// Package metadata describes the courier library itself.
package metadata

// Version is the library version. Servers announce it with their endpoint.
const Version = "0.3.0"

// Protocol returns the wire protocol name and version, e.g. "courier/0.3.0".
func Protocol() string {
	return "courier/" + Version
}
