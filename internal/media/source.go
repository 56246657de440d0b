package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

// ErrCaptureUnavailable means the audio input could not be opened.
var ErrCaptureUnavailable = errors.New("audio capture unavailable")

const (
	frameDuration = 20 * time.Millisecond
	clockRate     = 48000
)

// silenceFrame is a single 20ms Opus frame of silence.
var silenceFrame = []byte{0xf8, 0xff, 0xfe}

// SampleWriter is satisfied by *webrtc.TrackLocalStaticSample.
type SampleWriter interface {
	WriteSample(pionmedia.Sample) error
}

type frameReader interface {
	next() ([]byte, time.Duration, error)
	io.Closer
}

// Source feeds one outbound Opus track shared by every peer link.
type Source struct {
	track  *webrtc.TrackLocalStaticSample
	out    SampleWriter
	frames frameReader

	muted     atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	log       *slog.Logger
}

// Open prepares the capture source. An empty input produces silence;
// otherwise input must be an Ogg/Opus file, which is played in a loop.
func Open(input string) (*Source, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: clockRate, Channels: 2},
		"audio", "huddle",
	)
	if err != nil {
		return nil, fmt.Errorf("create audio track: %w", err)
	}

	var frames frameReader = silence{}
	if input != "" {
		frames, err = openOgg(input)
		if err != nil {
			return nil, err
		}
	}

	s := newSource(track, frames)
	s.track = track
	return s, nil
}

func newSource(out SampleWriter, frames frameReader) *Source {
	return &Source{
		out:    out,
		frames: frames,
		done:   make(chan struct{}),
		log:    slog.Default().With("component", "media"),
	}
}

// Track is the local track to add to every peer connection.
func (s *Source) Track() *webrtc.TrackLocalStaticSample {
	return s.track
}

// Start paces frames onto the track until ctx is done or Close is called.
func (s *Source) Start(ctx context.Context) {
	s.startOnce.Do(func() { go s.run(ctx) })
}

// run writes one sample, then waits out that sample's duration before the
// next. Deadlines advance from the start time so pacing does not drift.
func (s *Source) run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	deadline := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-timer.C:
		}

		data, dur := silenceFrame, frameDuration
		if !s.muted.Load() {
			var err error
			if data, dur, err = s.frames.next(); err != nil {
				s.log.Error("read audio frame", "err", err)
				return
			}
		}
		if err := s.out.WriteSample(pionmedia.Sample{Data: data, Duration: dur}); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			s.log.Debug("write audio sample", "err", err)
		}

		deadline = deadline.Add(dur)
		timer.Reset(time.Until(deadline))
	}
}

// SetMuted replaces outbound audio with silence while muted. A muted
// file input is paused, not skipped.
func (s *Source) SetMuted(muted bool) {
	s.muted.Store(muted)
}

// Muted reports the current mute state.
func (s *Source) Muted() bool {
	return s.muted.Load()
}

// Close stops the pacing loop and releases the input.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.frames.Close()
	})
	return err
}

type silence struct{}

func (silence) next() ([]byte, time.Duration, error) { return silenceFrame, frameDuration, nil }
func (silence) Close() error                         { return nil }

// oggLoop reads Opus pages from an Ogg file and rewinds at the end.
type oggLoop struct {
	file        *os.File
	reader      *oggreader.OggReader
	lastGranule uint64
}

func openOgg(path string) (*oggLoop, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}
	l := &oggLoop{file: f}
	if err := l.rewind(); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

func (l *oggLoop) rewind() error {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}
	r, _, err := oggreader.NewWith(l.file)
	if err != nil {
		return fmt.Errorf("%w: %s is not an Ogg/Opus file: %v", ErrCaptureUnavailable, l.file.Name(), err)
	}
	l.reader = r
	l.lastGranule = 0
	return nil
}

func (l *oggLoop) next() ([]byte, time.Duration, error) {
	for attempt := 0; attempt < 2; {
		page, header, err := l.reader.ParseNextPage()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if err := l.rewind(); err != nil {
				return nil, 0, err
			}
			attempt++
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		if bytes.HasPrefix(page, []byte("OpusTags")) {
			continue
		}

		samples := header.GranulePosition - l.lastGranule
		l.lastGranule = header.GranulePosition
		dur := time.Duration(samples) * time.Second / clockRate
		if dur <= 0 {
			dur = frameDuration
		}
		return page, dur, nil
	}
	return nil, 0, fmt.Errorf("%s contains no audio", l.file.Name())
}

func (l *oggLoop) Close() error {
	return l.file.Close()
}
