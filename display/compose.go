package display

import (
	"errors"
	"fmt"
	"time"

	"github.com/hwclocks/sevenclock/config"
	"github.com/hwclocks/sevenclock/segment"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	renderPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "render_passes",
		Help: "count of frames composed and flushed to the strips",
	})
	renderSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "render_passes_skipped",
		Help: "count of render passes skipped because the time source was unavailable",
	})
	brightnessMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "effective_brightness",
		Help: "brightness applied to the strips on the last frame, after auto-dim",
	})
)

// Slot layout within a unit's 15-LED strand.  The dot occupies slot 0;
// the digit nearer the dot starts at 1, the outer digit at 8.  The hour
// strand's outer digit is its tens digit, the minute strand's outer
// digit is its units digit.
const (
	dotSlot   = 0
	innerBase = 1
	outerBase = 8
)

// TimeSource provides the current local wall-clock time.  ok is false
// until the clock has synced at least once.
type TimeSource interface {
	Now() (t time.Time, ok bool)
}

// Composer derives the four digits, the dot state and the effective
// brightness from the current time and configuration, and flushes both
// strips.
type Composer struct {
	src          TimeSource
	cfg          *config.Store
	hour, minute *Strip
}

func NewComposer(src TimeSource, cfg *config.Store, hour, minute *Strip) *Composer {
	return &Composer{src: src, cfg: cfg, hour: hour, minute: minute}
}

// Render composes and flushes one frame.  If the time source is not
// ready the pass is skipped entirely and the previous frame stays up.
func (c *Composer) Render(dotOn bool) error {
	now, ok := c.src.Now()
	if !ok {
		renderSkipped.Inc()
		return nil
	}
	cfg := c.cfg.Snapshot()

	// Parsed fresh every pass so a color edit (or a corrupt stored
	// color, which parses to black) takes effect on the next frame.
	col := config.ParseColor(cfg.Color)

	hour24 := now.Hour()
	hour := hour24
	if !cfg.Use24h {
		if hour > 12 {
			hour -= 12
		}
		if hour == 0 {
			hour = 12
		}
	}
	minute := now.Minute()

	var hourBuf, minuteBuf [NumLEDs]uint32
	if dotOn {
		hourBuf[dotSlot] = col
		minuteBuf[dotSlot] = col
	}

	// The hour tens digit is suppressed when zero.  12-hour mode never
	// shows it; 24-hour mode shows it unless configured not to.
	if h1 := hour / 10; h1 > 0 || (cfg.Use24h && !cfg.HideLeadingZero24h) {
		segment.Draw(hourBuf[:], segment.Hour, outerBase, h1, col)
	}
	segment.Draw(hourBuf[:], segment.Hour, innerBase, hour%10, col)
	segment.Draw(minuteBuf[:], segment.Minute, innerBase, minute/10, col)
	segment.Draw(minuteBuf[:], segment.Minute, outerBase, minute%10, col)

	brightness := cfg.Brightness
	if cfg.AutoDim && inDimWindow(hour24, cfg.DimStartHour, cfg.DimEndHour) {
		brightness /= 3
	}
	brightnessMetric.Set(float64(brightness))

	errs := []error{
		flush(c.hour, hourBuf, brightness),
		flush(c.minute, minuteBuf, brightness),
	}
	renderPasses.Inc()
	return errors.Join(errs...)
}

func flush(s *Strip, buf [NumLEDs]uint32, brightness uint8) error {
	for i, px := range buf {
		s.SetPixel(i, px)
	}
	s.SetBrightness(brightness)
	if err := s.Show(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// inDimWindow reports whether hour h falls in [start, end), a window
// that wraps past midnight when start > end.  An empty window dims
// around the clock, which is what the original hardware did.
func inDimWindow(h int, start, end uint8) bool {
	s, e := int(start), int(end)
	switch {
	case s < e:
		return h >= s && h < e
	case s > e:
		return h >= s || h < e
	default:
		return true
	}
}
