//go:build !linux

package parallel

import "errors"

func setAffinity(int) error {
	return errors.New("thread affinity is only supported on linux")
}
