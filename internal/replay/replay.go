// Package replay records engine output to a msgpack stream and reads it
// back. A file is a Header followed by Records until the end of the stream.
package replay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jshstorm/unit-simulator-sub000/internal/sim"
	"github.com/vmihailenco/msgpack/v5"
)

// FormatVersion is bumped whenever Header or Record change shape.
const FormatVersion = 1

// ErrNoFrame is returned by Seek when no snapshot at or before the wanted
// frame was recorded.
var ErrNoFrame = errors.New("replay: no snapshot at or before frame")

// Header opens every replay file.
type Header struct {
	Version   int       `msgpack:"v"`
	RunID     uuid.UUID `msgpack:"run"`
	Name      string    `msgpack:"name"`
	CreatedAt time.Time `msgpack:"created"`
	Width     float64   `msgpack:"w"`
	Height    float64   `msgpack:"h"`
	MaxFrames int       `msgpack:"maxFrames"`
	Arena     bool      `msgpack:"arena"`
	Interval  int       `msgpack:"interval"` // ticks between snapshots
}

// RecordKind says which field of a Record is set.
type RecordKind uint8

const (
	RecordSnapshot RecordKind = iota + 1
	RecordEvent
	RecordMessage
	RecordComplete
)

// Record is one entry after the header.
type Record struct {
	Kind     RecordKind         `msgpack:"k"`
	Frame    int                `msgpack:"f"`
	Snapshot *sim.FrameSnapshot `msgpack:"s,omitempty"`
	Event    *sim.UnitEvent     `msgpack:"e,omitempty"`
	Message  string             `msgpack:"m,omitempty"`
}

// Recorder is a sim.Callbacks sink that writes a replay. Snapshots are kept
// every Interval ticks plus the final one; every event and message is kept.
type Recorder struct {
	buf      *bufio.Writer
	enc      *msgpack.Encoder
	closer   io.Closer
	interval int
	frame    int
	last     *sim.FrameSnapshot
	lastSent int
	err      error
}

// NewRecorder writes h to w and returns a recorder appending to it. A zero
// interval records every frame.
func NewRecorder(w io.Writer, h Header) (*Recorder, error) {
	if h.Interval <= 0 {
		h.Interval = 1
	}
	h.Version = FormatVersion
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	buf := bufio.NewWriter(w)
	r := &Recorder{buf: buf, enc: msgpack.NewEncoder(buf), interval: h.Interval, lastSent: -1}
	if err := r.enc.Encode(&h); err != nil {
		return nil, fmt.Errorf("replay: write header: %w", err)
	}
	return r, nil
}

// Create opens path for writing and starts a replay in it.
func Create(path string, h Header) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("replay: create %s: %w", path, err)
	}
	r, err := NewRecorder(f, h)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// HeaderFor fills a header from an engine.
func HeaderFor(e *sim.Engine, name string, interval int) Header {
	o := e.Options()
	return Header{
		RunID:     e.RunID(),
		Name:      name,
		Width:     o.Width,
		Height:    o.Height,
		MaxFrames: o.MaxFrames,
		Arena:     o.Structures,
		Interval:  interval,
	}
}

func (r *Recorder) write(rec Record) {
	if r.err != nil {
		return
	}
	if err := r.enc.Encode(&rec); err != nil {
		r.err = fmt.Errorf("replay: write frame %d: %w", rec.Frame, err)
	}
}

// OnFrameGenerated implements sim.Callbacks.
func (r *Recorder) OnFrameGenerated(f *sim.FrameSnapshot) {
	r.frame = f.Frame
	r.last = f
	if f.Frame%r.interval == 0 {
		r.write(Record{Kind: RecordSnapshot, Frame: f.Frame, Snapshot: f})
		r.lastSent = f.Frame
	}
}

// OnUnitEvent implements sim.Callbacks.
func (r *Recorder) OnUnitEvent(e sim.UnitEvent) {
	r.write(Record{Kind: RecordEvent, Frame: e.Frame, Event: &e})
}

// OnStateChanged implements sim.Callbacks.
func (r *Recorder) OnStateChanged(msg string) {
	r.write(Record{Kind: RecordMessage, Frame: r.frame, Message: msg})
}

// OnSimulationComplete implements sim.Callbacks. The final snapshot is
// written when the interval skipped it.
func (r *Recorder) OnSimulationComplete(frame int, reason sim.CompletionReason) {
	if r.last != nil && r.lastSent != r.last.Frame {
		r.write(Record{Kind: RecordSnapshot, Frame: r.last.Frame, Snapshot: r.last})
		r.lastSent = r.last.Frame
	}
	r.write(Record{Kind: RecordComplete, Frame: frame, Message: reason.String()})
}

// Err is the first write error, if any.
func (r *Recorder) Err() error { return r.err }

// Close flushes buffered records and closes the file opened by Create.
func (r *Recorder) Close() error {
	err := r.err
	if ferr := r.buf.Flush(); err == nil && ferr != nil {
		err = fmt.Errorf("replay: flush: %w", ferr)
	}
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}
	return err
}

// Reader decodes a replay stream.
type Reader struct {
	Header Header
	dec    *msgpack.Decoder
	closer io.Closer
}

// NewReader reads the header from rd.
func NewReader(rd io.Reader) (*Reader, error) {
	dec := msgpack.NewDecoder(bufio.NewReader(rd))
	r := &Reader{dec: dec}
	if err := dec.Decode(&r.Header); err != nil {
		return nil, fmt.Errorf("replay: read header: %w", err)
	}
	if r.Header.Version != FormatVersion {
		return nil, fmt.Errorf("replay: unsupported version %d", r.Header.Version)
	}
	return r, nil
}

// Open opens a replay file.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open %s: %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Next returns the next record, or io.EOF at the end of the stream.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("replay: read record: %w", err)
	}
	return rec, nil
}

// Close closes the file opened by Open.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Snapshots reads every remaining snapshot in order.
func (r *Reader) Snapshots() ([]*sim.FrameSnapshot, error) {
	var out []*sim.FrameSnapshot
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if rec.Kind == RecordSnapshot && rec.Snapshot != nil {
			out = append(out, rec.Snapshot)
		}
	}
}

// Seek reads forward to the latest snapshot at or before frame.
func (r *Reader) Seek(frame int) (*sim.FrameSnapshot, error) {
	var best *sim.FrameSnapshot
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if rec.Kind != RecordSnapshot || rec.Snapshot == nil {
			continue
		}
		if rec.Frame > frame {
			break
		}
		best = rec.Snapshot
	}
	if best == nil {
		return nil, fmt.Errorf("%w %d", ErrNoFrame, frame)
	}
	return best, nil
}

// Resume rebuilds an engine at frame: it loads the nearest recorded
// snapshot at or before frame and steps forward until the world is at
// frame+1, the tick after frame. opts must describe the recorded run.
func Resume(path string, frame int, opts sim.Options, options ...sim.EngineOption) (*sim.Engine, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	snap, err := r.Seek(frame)
	if err != nil {
		return nil, err
	}
	e := sim.NewEngine(opts, options...)
	if err := e.LoadState(snap); err != nil {
		return nil, fmt.Errorf("replay: resume: %w", err)
	}
	for e.World().Frame <= frame {
		if _, err := e.Step(nil); err != nil {
			return nil, fmt.Errorf("replay: resume: %w", err)
		}
	}
	return e, nil
}
