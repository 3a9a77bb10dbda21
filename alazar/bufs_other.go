//go:build !unix && !windows

package alazar

func allocPages(size int) ([]byte, error) {
	return nil, errNoDMA
}

func freePages(mem []byte) error {
	return nil
}
