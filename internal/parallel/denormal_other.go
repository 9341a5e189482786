//go:build !amd64

package parallel

const denormalSupported = false

// setDenormalAsZero is a no-op on architectures without an MXCSR register.
func setDenormalAsZero() {}

func denormalAsZero() bool {
	return false
}
