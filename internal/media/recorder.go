package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// ReadPacket returns the next RTP packet of a remote track.
type ReadPacket func() (*rtp.Packet, error)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Recorder writes each remote party's audio to its own Ogg file.
type Recorder struct {
	dir string

	mu      sync.Mutex
	writers map[string]*oggwriter.OggWriter
}

// NewRecorder writes one Ogg file per remote party into dir, creating it
// if needed.
func NewRecorder(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recording directory: %w", err)
	}
	return &Recorder{dir: dir, writers: make(map[string]*oggwriter.OggWriter)}, nil
}

// Path is where a recording named name is written.
func (r *Recorder) Path(name string) string {
	return filepath.Join(r.dir, unsafeName.ReplaceAllString(name, "_")+".ogg")
}

// Record copies packets into name's file until read fails. A clean end
// of stream returns nil.
func (r *Recorder) Record(name string, read ReadPacket) error {
	path := r.Path(name)
	w, err := oggwriter.New(path, clockRate, 2)
	if err != nil {
		return fmt.Errorf("open recording %s: %w", path, err)
	}

	r.mu.Lock()
	r.writers[path] = w
	r.mu.Unlock()
	defer r.finish(path)

	for {
		pkt, err := read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := w.WriteRTP(pkt); err != nil {
			return fmt.Errorf("write recording %s: %w", path, err)
		}
	}
}

func (r *Recorder) finish(path string) {
	r.mu.Lock()
	w, ok := r.writers[path]
	delete(r.writers, path)
	r.mu.Unlock()
	if ok {
		w.Close()
	}
}

// Close finalizes every open recording.
func (r *Recorder) Close() error {
	r.mu.Lock()
	writers := r.writers
	r.writers = make(map[string]*oggwriter.OggWriter)
	r.mu.Unlock()

	var errs []error
	for _, w := range writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

// Discard drains a remote track so its buffers never fill.
func Discard(read ReadPacket) {
	for {
		if _, err := read(); err != nil {
			return
		}
	}
}
