//go:build !linux

package watch

func newInotifyBackend() (Backend, error) {
	return nil, ErrUnsupported
}
