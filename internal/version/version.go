// ABOUTME: Version information for pianoroom binaries
// ABOUTME: Reported in logs and in the client/hello name
package version

const (
	Version      = "0.3.0"
	Product      = "pianoroom"
	Manufacturer = "Resonate Protocol"
)

// String is the product and version, e.g. "pianoroom/0.3.0"
func String() string {
	return Product + "/" + Version
}
