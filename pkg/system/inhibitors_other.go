//go:build !linux && !darwin

package system

func listPlatformInhibitors() ([]Inhibitor, error) {
	return nil, ErrNotSupported
}
