package audiocapture

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

// PortAudioOpener opens microphone streams through PortAudio. Initialize once
// at startup, Terminate at shutdown.
type PortAudioOpener struct {
	initOnce    sync.Once
	initErr     error
	initialized bool
}

// NewPortAudioOpener returns an opener; the PortAudio library is initialized
// lazily on the first Open.
func NewPortAudioOpener() *PortAudioOpener {
	return &PortAudioOpener{}
}

func (o *PortAudioOpener) init() error {
	o.initOnce.Do(func() {
		o.initErr = portaudio.Initialize()
		o.initialized = o.initErr == nil
	})
	return o.initErr
}

// Terminate releases the PortAudio library. Call once, after every stream is
// closed.
func (o *PortAudioOpener) Terminate() {
	if o.initialized {
		if err := portaudio.Terminate(); err != nil {
			slog.Warn("terminate portaudio", "error", err)
		}
	}
}

// Open resolves the named input device, or the system default when selector
// is empty. The stream is not created until Start, so the caller can read
// the native rate and build its processing chain before any callback fires.
func (o *PortAudioOpener) Open(selector string) (Device, error) {
	if err := o.init(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceInitFailed, err)
	}

	info, err := o.lookup(selector)
	if err != nil {
		return nil, err
	}

	params := portaudio.HighLatencyParameters(info, nil)
	params.Input.Channels = 1
	params.FramesPerBuffer = framesPerBuffer

	return &portaudioDevice{
		name:   info.Name,
		params: params,
		rate:   int(params.SampleRate),
	}, nil
}

// lookup resolves the device selector. Matching is case-insensitive on a name
// substring, the way users type device names.
func (o *PortAudioOpener) lookup(selector string) (*portaudio.DeviceInfo, error) {
	if selector == "" {
		info, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: no default input device: %w", ErrDeviceNotFound, err)
		}
		return info, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate devices: %w", ErrDeviceInitFailed, err)
	}
	want := strings.ToLower(selector)
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), want) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, selector)
}

type portaudioDevice struct {
	name   string
	params portaudio.StreamParameters
	rate   int

	stream  *portaudio.Stream
	onError func(error)

	closeOnce sync.Once
	closeErr  error
}

func (d *portaudioDevice) SampleRate() int {
	return d.rate
}

// Start opens and starts the capture stream. Callbacks begin on the audio
// thread before Start returns.
func (d *portaudioDevice) Start(callback func(in []float32), onError func(error)) error {
	stream, err := portaudio.OpenStream(d.params, callback)
	if err != nil {
		return fmt.Errorf("open stream for %q: %w", d.name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start stream for %q: %w", d.name, err)
	}
	d.stream = stream
	d.onError = onError
	return nil
}

func (d *portaudioDevice) Close() error {
	d.closeOnce.Do(func() {
		if d.stream == nil {
			return
		}
		if err := d.stream.Stop(); err != nil {
			// A stream that died mid-recording fails Stop; surface it
			// through the session's interrupt path, not Close.
			d.onError(err)
		}
		d.closeErr = d.stream.Close()
	})
	return d.closeErr
}
