// Package microphone records audio from a capture device through miniaudio.
package microphone

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/expkit/camrec/internal/logging"
	"github.com/expkit/camrec/pkg/audio"
)

var logger = logging.NewLogger("camrec/audio/microphone")

// Config selects the capture device and the recording format.
type Config struct {
	// Device is a device name as reported by Devices. Empty selects the default device.
	Device     string
	SampleRate int
	Channels   int
}

// DefaultConfig records mono 48 kHz audio from the default device.
func DefaultConfig() Config {
	return Config{SampleRate: 48000, Channels: 1}
}

// Microphone is an audio.Microphone backed by malgo.
type Microphone struct {
	cfg Config

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	dev     *malgo.Device
	samples []int16
	track   *audio.Track
}

var _ audio.Microphone = (*Microphone)(nil)

// New creates a microphone. The device is not touched until Start.
func New(cfg Config) *Microphone {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	return &Microphone{cfg: cfg}
}

// Devices lists the names of the capture devices.
func Devices() ([]string, error) {
	ctx, err := initContext()
	if err != nil {
		return nil, err
	}
	defer release(ctx)

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

func (m *Microphone) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev != nil {
		return audio.ErrAlreadyStarted
	}

	ctx, err := initContext()
	if err != nil {
		return err
	}

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.PerformanceProfile = malgo.LowLatency
	config.Capture.Format = malgo.FormatS16
	config.Capture.Channels = uint32(m.cfg.Channels)
	config.SampleRate = uint32(m.cfg.SampleRate)

	if m.cfg.Device != "" {
		infos, err := ctx.Devices(malgo.Capture)
		if err != nil {
			release(ctx)
			return err
		}
		found := false
		for _, info := range infos {
			if info.Name() == m.cfg.Device {
				config.Capture.DeviceID = info.ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			release(ctx)
			return fmt.Errorf("audio capture device %q not found", m.cfg.Device)
		}
	}

	m.samples = m.samples[:0]
	m.track = nil
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, chunk []byte, _ uint32) {
			m.mu.Lock()
			defer m.mu.Unlock()
			// miniaudio delivers samples in host byte order.
			for i := 0; i+1 < len(chunk); i += 2 {
				m.samples = append(m.samples, int16(binary.NativeEndian.Uint16(chunk[i:])))
			}
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, config, callbacks)
	if err != nil {
		release(ctx)
		return err
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		release(ctx)
		return err
	}

	m.ctx = ctx
	m.dev = dev
	logger.Debugf("recording %d channel(s) at %d Hz", m.cfg.Channels, m.cfg.SampleRate)
	return nil
}

func (m *Microphone) Stop() error {
	m.mu.Lock()
	dev, ctx := m.dev, m.ctx
	m.dev, m.ctx = nil, nil
	m.mu.Unlock()

	if dev == nil {
		return audio.ErrNotStarted
	}

	// The data callback takes m.mu, so the device is stopped without holding it.
	err := dev.Stop()
	dev.Uninit()
	release(ctx)

	m.mu.Lock()
	samples := make([]int16, len(m.samples))
	copy(samples, m.samples)
	m.track = &audio.Track{
		SampleRate: m.cfg.SampleRate,
		Channels:   m.cfg.Channels,
		Samples:    samples,
	}
	m.mu.Unlock()
	return err
}

func (m *Microphone) IsStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dev != nil
}

func (m *Microphone) Recording() (*audio.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.track == nil {
		return nil, fmt.Errorf("no recording available")
	}
	return m.track, nil
}

func initContext() (*malgo.AllocatedContext, error) {
	return malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debugf("%v", message)
	})
}

func release(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}
