// Package display drives the clock's two LED strips and composes the
// per-second frame.  Each strip retains its last frame in memory and can
// serve it as a PNG, so the clock face is visible in a browser even with
// no hardware attached.
package display

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"net/http"
	"sync"

	xdraw "golang.org/x/image/draw"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/nrzled"
)

// NumLEDs is the number of addressable LEDs per unit: the separator dot
// at slot 0 plus two 7-LED digit blocks.
const NumLEDs = 15

const previewScale = 24 // size of one LED in the preview PNG

// Strip is one unit's strand of WS2812-style LEDs, driven over SPI.  A
// nil SPI port gives a preview-only strip, which is also what the tests
// use.
type Strip struct {
	name string
	leds *nrzled.Dev

	mu         sync.Mutex
	pixels     [NumLEDs]uint32 // 0xRRGGBB, must hold mu
	brightness uint8           // must hold mu
}

// NewStrip opens the strand on port p.  p may be nil.
func NewStrip(name string, p spi.Port) (*Strip, error) {
	s := &Strip{name: name, brightness: 0xff}
	if p == nil {
		return s, nil
	}
	leds, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: NumLEDs,
		Channels:  3,
		Freq:      800 * physic.KiloHertz,
	})
	if err != nil {
		return nil, fmt.Errorf("init %s strand: %w", name, err)
	}
	s.leds = leds
	return s, nil
}

// SetPixel stages a 24-bit RGB value for slot i.  Nothing reaches the
// hardware until Show.
func (s *Strip) SetPixel(i int, c uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pixels[i] = c
}

// SetBrightness stages the strand-wide brightness, 0-255.
func (s *Strip) SetBrightness(b uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brightness = b
}

// Pixels returns the staged frame.
func (s *Strip) Pixels() [NumLEDs]uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pixels
}

// Brightness returns the staged brightness.
func (s *Strip) Brightness() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brightness
}

// Show flushes the staged frame to the strand.  WS2812 LEDs have no
// hardware brightness control, so the colors are scaled here, the same
// way the device's LED library does it.
func (s *Strip) Show() error {
	s.mu.Lock()
	pixels, brightness := s.pixels, s.brightness
	s.mu.Unlock()
	if s.leds == nil {
		return nil
	}
	buf := make([]byte, 0, NumLEDs*3)
	for _, c := range pixels {
		r, g, b := scale(c, brightness)
		buf = append(buf, r, g, b)
	}
	if _, err := s.leds.Write(buf); err != nil {
		return fmt.Errorf("write to %s strand: %w", s.name, err)
	}
	return nil
}

// Blank turns every LED off.
func (s *Strip) Blank() error {
	s.mu.Lock()
	s.pixels = [NumLEDs]uint32{}
	s.mu.Unlock()
	if err := s.Show(); err != nil {
		return fmt.Errorf("blank: %w", err)
	}
	return nil
}

func scale(c uint32, brightness uint8) (r, g, b uint8) {
	r = uint8(((c >> 16) & 0xff) * uint32(brightness) / 255)
	g = uint8(((c >> 8) & 0xff) * uint32(brightness) / 255)
	b = uint8((c & 0xff) * uint32(brightness) / 255)
	return
}

// ServeHTTP serves the staged frame as a PNG, one square per LED, with
// brightness applied so the preview dims when the clock does.
func (s *Strip) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	pixels, brightness := s.pixels, s.brightness
	s.mu.Unlock()

	small := image.NewNRGBA(image.Rect(0, 0, NumLEDs, 1))
	for i, c := range pixels {
		r, g, b := scale(c, brightness)
		small.SetNRGBA(i, 0, color.NRGBA{R: r, G: g, B: b, A: 0xff})
	}
	img := image.NewNRGBA(image.Rect(0, 0, NumLEDs*previewScale, previewScale))
	xdraw.NearestNeighbor.Scale(img, img.Bounds(), small, small.Bounds(), xdraw.Src, nil)

	w.Header().Add("content-type", "image/png")
	w.WriteHeader(http.StatusOK)
	if err := png.Encode(w, img); err != nil {
		log.Printf("encoding %s preview: %v", s.name, err)
	}
}
