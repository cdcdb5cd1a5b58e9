package device

import (
	"context"
	"fmt"
	"runtime"
	"slices"

	"github.com/samber/lo"

	"github.com/expkit/camrec/internal/ffmpeg"
	"github.com/expkit/camrec/internal/logging"
)

var logger = logging.NewLogger("camrec/device")

// Query is a platform routine returning every capture mode of every device it can see.
type Query func(ctx context.Context) ([]Descriptor, error)

// Enumerator dispatches to the query routine of the host operating system.
type Enumerator struct {
	// GOOS selects the platform routine. Empty means runtime.GOOS.
	GOOS string
	// Platforms maps a GOOS value to its query routine.
	Platforms map[string]Query
	// Common routines run on every supported platform after the platform routine.
	Common []Query
}

// NewEnumerator returns an Enumerator wired to the AVFoundation, DirectShow and
// Video4Linux2 routines. ffmpegPath locates the ffmpeg executable used to query
// AVFoundation and DirectShow; empty means "ffmpeg" on PATH.
func NewEnumerator(ffmpegPath string, common ...Query) *Enumerator {
	bin := ffmpeg.Binary(ffmpegPath)
	return &Enumerator{
		Platforms: map[string]Query{
			"darwin":  AVFoundationQuery(bin, ffmpeg.Exec),
			"windows": DirectShowQuery(bin, ffmpeg.Exec),
			"linux":   V4L2Query(DefaultV4L2Pattern),
		},
		Common: common,
	}
}

func (e *Enumerator) goos() string {
	if e.GOOS != "" {
		return e.GOOS
	}
	return runtime.GOOS
}

// Descriptors returns every descriptor ordered by device index, each device's modes ranked.
func (e *Enumerator) Descriptors(ctx context.Context) ([]Descriptor, error) {
	goos := e.goos()
	query, ok := e.Platforms[goos]
	if !ok || query == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}

	descs, err := query(ctx)
	if err != nil {
		return nil, err
	}
	for _, q := range e.Common {
		more, err := q(ctx)
		if err != nil {
			return nil, err
		}
		descs = append(descs, more...)
	}

	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}

	Rank(descs)
	slices.SortStableFunc(descs, func(a, b Descriptor) int {
		return a.Index - b.Index
	})
	logger.Debugf("found %d capture modes on %s", len(descs), goos)
	return descs, nil
}

// ListDevices maps each device name to its capture modes, best first.
func (e *Enumerator) ListDevices(ctx context.Context) (map[string][]Descriptor, error) {
	descs, err := e.Descriptors(ctx)
	if err != nil {
		return nil, err
	}
	return lo.GroupBy(descs, func(d Descriptor) string {
		return d.Name
	}), nil
}

// Descriptions holds display strings for the enumerated modes. ByDevice is set when
// listing without collapsing, Flat when collapsing.
type Descriptions struct {
	ByDevice map[string][]string
	Flat     []string
}

// ListDescriptions renders every mode with Descriptor.Description. With collapse the
// strings of all devices are returned as one de-duplicated list.
func (e *Enumerator) ListDescriptions(ctx context.Context, collapse bool) (Descriptions, error) {
	descs, err := e.Descriptors(ctx)
	if err != nil {
		return Descriptions{}, err
	}

	if collapse {
		return Descriptions{
			Flat: lo.Uniq(lo.Map(descs, func(d Descriptor, _ int) string {
				return d.Description()
			})),
		}, nil
	}

	byDevice := lo.GroupBy(descs, func(d Descriptor) string {
		return d.Name
	})
	return Descriptions{
		ByDevice: lo.MapValues(byDevice, func(ds []Descriptor, _ string) []string {
			return lo.Map(ds, func(d Descriptor, _ int) string {
				return d.Description()
			})
		}),
	}, nil
}
