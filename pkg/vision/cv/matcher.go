// Package cv implements vision.Matcher with OpenCV template matching.
package cv

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/teslashibe/go-rokbot/internal/log"
	"github.com/teslashibe/go-rokbot/pkg/vision"
	"gocv.io/x/gocv"
)

// DefaultCloseWait bounds how long Close waits for running matches.
const DefaultCloseWait = 5 * time.Second

// ErrMatchesRunning is returned by Close when matches outlived the wait.
// The templates are left allocated so the running calls stay valid.
var ErrMatchesRunning = errors.New("cv: matches still running")

// Matcher holds the template assets, decoded once and flattened to BGR.
// Templates are read-only after loading, so matches run concurrently and no
// lock is held across a native call.
type Matcher struct {
	mu        sync.Mutex // Protects templates and closed
	templates map[vision.TargetID]gocv.Mat
	closed    bool
	inflight  sync.WaitGroup
	closeWait time.Duration
}

// NewMatcher loads one template per id from dir. A missing or unreadable
// file is logged and skipped; matching that id later reports
// vision.ErrTemplateNotFound.
func NewMatcher(dir string, ids []vision.TargetID) *Matcher {
	logger := log.With("component", "templates")
	m := &Matcher{
		templates: make(map[vision.TargetID]gocv.Mat, len(ids)),
		closeWait: DefaultCloseWait,
	}

	for _, id := range ids {
		path := filepath.Join(dir, id.File())
		if _, err := os.Stat(path); err != nil {
			logger.Error("template asset missing", "target", id, "path", path)
			continue
		}
		raw := gocv.IMRead(path, gocv.IMReadUnchanged)
		if raw.Empty() {
			raw.Close()
			logger.Error("template asset unreadable", "target", id, "path", path)
			continue
		}
		tpl, err := toBGR(raw)
		raw.Close()
		if err != nil {
			logger.Error("template asset has unsupported layout", "target", id, "error", err)
			continue
		}
		m.templates[id] = tpl
	}

	logger.Info("templates loaded", "loaded", len(m.templates), "requested", len(ids))
	return m
}

// Loaded reports whether a template for id is available.
func (m *Matcher) Loaded(id vision.TargetID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.templates[id]
	return ok
}

// Match correlates the template for id over the whole frame with
// TM_CCOEFF_NORMED.
func (m *Matcher) Match(frame vision.Frame, id vision.TargetID) (vision.Surface, error) {
	if frame.Empty() {
		return nil, vision.ErrEmptyFrame
	}

	tpl, ok := m.acquire(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", vision.ErrTemplateNotFound, id)
	}
	defer m.inflight.Done()

	img, err := FrameToMat(frame)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	if img.Channels() != tpl.Channels() {
		return nil, fmt.Errorf("%w: frame %d, template %d", vision.ErrChannelMismatch, img.Channels(), tpl.Channels())
	}
	if tpl.Cols() > img.Cols() || tpl.Rows() > img.Rows() {
		return nil, fmt.Errorf("%w: %s is %dx%d, frame is %dx%d",
			vision.ErrTemplateTooLarge, id, tpl.Cols(), tpl.Rows(), img.Cols(), img.Rows())
	}

	result := gocv.NewMat()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(img, tpl, &result, gocv.TmCcoeffNormed, mask)
	if result.Empty() {
		result.Close()
		return nil, fmt.Errorf("vision: match produced no response for %s", id)
	}

	return &surface{
		result: result,
		size:   image.Pt(tpl.Cols(), tpl.Rows()),
	}, nil
}

// acquire returns the template for id and registers a running match. The
// caller must call m.inflight.Done when ok.
func (m *Matcher) acquire(id vision.TargetID) (gocv.Mat, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return gocv.Mat{}, false
	}
	tpl, ok := m.templates[id]
	if ok {
		m.inflight.Add(1)
	}
	return tpl, ok
}

// Close stops new matches and releases every template once running matches
// finish. If they do not finish within the close wait the templates stay
// allocated and ErrMatchesRunning is returned; a later Close retries.
func (m *Matcher) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	idle := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-time.After(m.closeWait):
		return ErrMatchesRunning
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, tpl := range m.templates {
		tpl.Close()
		delete(m.templates, id)
	}
	return nil
}

// surface wraps a CV_32F response matrix.
type surface struct {
	result gocv.Mat
	size   image.Point
}

func (s *surface) Peak() (float64, image.Point) {
	_, maxVal, _, maxLoc := gocv.MinMaxLoc(s.result)
	return float64(maxVal), maxLoc
}

// Erase fills r with -1, the floor of a normalized correlation.
func (s *surface) Erase(r image.Rectangle) {
	r = r.Intersect(image.Rect(0, 0, s.result.Cols(), s.result.Rows()))
	if r.Empty() {
		return
	}
	region := s.result.Region(r)
	defer region.Close()
	region.SetTo(gocv.NewScalar(-1, 0, 0, 0))
}

func (s *surface) TemplateSize() image.Point {
	return s.size
}

func (s *surface) Close() error {
	return s.result.Close()
}
