//go:build !unix

package diskspace

// Get is not supported on this platform.
func Get(string) (Usage, error) {
	return Usage{}, ErrUnsupported
}
