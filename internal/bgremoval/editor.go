package bgremoval

import (
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
)

// DefaultAlphaThreshold is the alpha at or below which a pixel counts as
// transparent when trimming
const DefaultAlphaThreshold uint8 = 5

// ErrClosed is returned by operations on a closed editor
var ErrClosed = stderrors.New("editor closed")

// Job is a running segmentation. Its result, if it arrives after the job was
// cancelled or the editor closed, is discarded.
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Cancel stops the segmentation. It is safe to call more than once.
func (j *Job) Cancel() { j.cancel() }

// Done is closed when the job has finished
func (j *Job) Done() <-chan struct{} { return j.done }

// Err returns the job's error once Done is closed
func (j *Job) Err() error {
	select {
	case <-j.done:
		return j.err
	default:
		return nil
	}
}

// Wait blocks until the job finishes or ctx is done
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Editor holds the touch-up state for one signature photo.
//
// original is the opaque source, segmented the segmentation result (the
// opaque source when segmentation failed) and working the buffer strokes
// are applied to. All three share one orientation.
type Editor struct {
	mu        sync.Mutex
	original  *image.NRGBA
	segmented *image.NRGBA
	working   *image.NRGBA
	dirty     bool
	job       *Job
	gen       int
	turns     int // quarter turns applied by Rotate90
	segErr    error
	closed    bool
}

// NewEditor starts an editor on src. Until segmentation finishes, the
// working buffer is the opaque source.
func NewEditor(src image.Image) (*Editor, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, errors.New(errors.ErrorTypeDecodeFailure, "signature image is empty")
	}
	orig := opaque(src)
	return &Editor{original: orig, working: clone(orig)}, nil
}

// Start runs seg on the source image in its own goroutine. A previous job is
// cancelled. A timeout of zero or less means no timeout.
func (e *Editor) Start(ctx context.Context, seg Segmenter, timeout time.Duration) (*Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if seg == nil {
		seg = LumaSegmenter{}
	}
	if e.job != nil {
		e.job.Cancel()
	}

	var jctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		jctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		jctx, cancel = context.WithCancel(ctx)
	}
	e.gen++
	job := &Job{cancel: cancel, done: make(chan struct{})}
	e.job = job
	e.segErr = nil

	go e.run(jctx, job, e.gen, e.turns, seg, clone(e.original))
	return job, nil
}

func (e *Editor) run(ctx context.Context, job *Job, gen, turns int, seg Segmenter, src *image.NRGBA) {
	defer close(job.done)
	defer job.cancel()

	result, err := segment(ctx, seg, src)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || gen != e.gen {
		log.Printf("[BGREMOVAL] discarding stale segmentation result")
		job.err = context.Canceled
		return
	}
	e.job = nil

	if err != nil {
		job.err = errors.Wrap(errors.ErrorTypeSegmentationUnavailable, "background removal failed", err)
		e.segErr = job.err
		log.Printf("[BGREMOVAL] %v; falling back to the original image", err)
		e.segmented = clone(e.original)
	} else {
		// the photo may have been rotated while segmentation ran
		for i := 0; i < (e.turns-turns)%4; i++ {
			result = rotateCCW(result)
		}
		e.segmented = result
	}
	if !e.dirty {
		e.working = clone(e.segmented)
	}
}

func segment(ctx context.Context, seg Segmenter, src *image.NRGBA) (out *image.NRGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("segmenter panic: %v", r)
		}
	}()

	out, err = seg.Segment(ctx, src)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if out == nil || out.Bounds().Size() != src.Bounds().Size() {
		return nil, fmt.Errorf("segmenter returned %v for a %v image", boundsOf(out), src.Bounds().Size())
	}
	return toNRGBA(out), nil
}

func boundsOf(img *image.NRGBA) image.Point {
	if img == nil {
		return image.Point{}
	}
	return img.Bounds().Size()
}

// Busy reports whether segmentation is in progress
func (e *Editor) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job != nil
}

// SegmentationErr returns the error of the last finished segmentation
func (e *Editor) SegmentationErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.segErr
}

// Size returns the dimensions of the working buffer
func (e *Editor) Size() geometry.Size {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := e.working.Bounds()
	return geometry.Size{W: float64(b.Dx()), H: float64(b.Dy())}
}

// Working returns a copy of the working buffer
func (e *Editor) Working() *image.NRGBA {
	e.mu.Lock()
	defer e.mu.Unlock()
	return clone(e.working)
}

// Apply applies a stroke to the working buffer. Strokes without points are
// ignored.
func (e *Editor) Apply(s Stroke) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if len(s.Points) == 0 {
		return nil
	}
	s.apply(e.working)
	e.dirty = true
	return nil
}

// Restore discards manual edits, returning the working buffer to the
// segmentation result, or to the source while segmentation has not finished
func (e *Editor) Restore() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.segmented != nil {
		e.working = clone(e.segmented)
	} else {
		e.working = clone(e.original)
	}
	e.dirty = false
}

// Rotate90 turns every buffer a quarter turn counterclockwise
func (e *Editor) Rotate90() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.turns++
	e.original = rotateCCW(e.original)
	e.segmented = rotateCCW(e.segmented)
	e.working = rotateCCW(e.working)
}

// Commit returns the working buffer trimmed to its visible content
func (e *Editor) Commit(threshold uint8) (*image.NRGBA, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	return Trim(e.working, threshold), nil
}

// Close cancels segmentation; later results are dropped
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if e.job != nil {
		e.job.Cancel()
		e.job = nil
	}
}

// ViewToImage maps a point in view coordinates, where the image is shown in
// fit, to image pixel coordinates. ok is false outside fit.
func ViewToImage(p geometry.Point, fit geometry.Rect, img geometry.Size) (geometry.Point, bool) {
	if fit.IsEmpty() || img.IsEmpty() || !fit.Contains(p) {
		return geometry.Point{}, false
	}
	nx := (p.X - fit.MinX()) / fit.W
	ny := (p.Y - fit.MinY()) / fit.H
	return geometry.Point{X: nx * img.W, Y: ny * img.H}, true
}
