package gonimbusx

const buildVersion = "0.1.0-dev"

// Version returns the version string of this library.
func Version() string {
	return buildVersion
}
