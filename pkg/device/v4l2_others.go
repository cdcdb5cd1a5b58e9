//go:build !linux

package device

import (
	"context"
	"fmt"
)

// V4L2Query is only functional on Linux.
func V4L2Query(pattern string) Query {
	return func(ctx context.Context) ([]Descriptor, error) {
		return nil, fmt.Errorf("%w: video4linux2", ErrUnsupportedPlatform)
	}
}
