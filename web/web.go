// Package web serves the clock's configuration page: the settings form,
// sync status, a live preview of both strips, and prometheus metrics.
package web

import (
	_ "embed"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/hwclocks/sevenclock/config"
	"github.com/hwclocks/sevenclock/synclog"
	"github.com/hwclocks/sevenclock/timesync"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	//go:embed index.html.tmpl
	indexHTML string
	pages     = template.Must(template.New("pages").Parse(indexHTML))
)

// TZOption is one entry in the timezone dropdown.  Rule is the POSIX TZ
// string stored in the config; Name is what the user sees.
type TZOption struct {
	Rule, Name string
}

// The same fixed list the original device offered.
var timezones = []TZOption{
	{"CET-1CEST,M3.5.0,M10.5.0/3", "Europe/Berlin"},
	{"GMT0BST,M3.5.0/1,M10.5.0", "Europe/London"},
	{"EST5EDT,M3.2.0/2,M11.1.0", "America/New_York"},
	{"PST8PDT,M3.2.0,M11.1.0", "America/Los_Angeles"},
	{"JST-9", "Asia/Tokyo"},
	{"UTC0", "UTC"},
	{"AEST-10AEDT,M10.1.0,M4.1.0/3", "Australia/Sydney"},
	{"IST-5:30", "Asia/Kolkata"},
	{"MSK-3", "Europe/Moscow"},
	{"HKT-8", "Asia/Hong_Kong"},
}

// Event is a request from the web interface that the process itself has
// to act on.
type Event int

const (
	// EventReboot asks main to exit so the service manager restarts us.
	EventReboot Event = iota
)

// Server holds the handlers for the configuration interface.
type Server struct {
	cfg          *config.Store
	src          *timesync.Source
	hour, minute http.Handler
	db           *synclog.DB // may be nil
	events       chan<- Event
	rebootDelay  time.Duration
}

func New(cfg *config.Store, src *timesync.Source, hour, minute http.Handler, db *synclog.DB, events chan<- Event) *Server {
	return &Server{
		cfg:         cfg,
		src:         src,
		hour:        hour,
		minute:      minute,
		db:          db,
		events:      events,
		rebootDelay: time.Second,
	}
}

// Register installs the handlers on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", s.serveIndex)
	mux.HandleFunc("/save", s.handleSave)
	mux.HandleFunc("/reboot", s.handleReboot)
	mux.Handle("/hour.png", s.hour)
	mux.Handle("/minute.png", s.minute)
	mux.Handle("/metrics", promhttp.Handler())
}

type indexData struct {
	Config    config.Config
	Status    timesync.Status
	Timezones []TZOption
	Syncs     []synclog.Sync
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data := indexData{
		Config:    s.cfg.Snapshot(),
		Status:    s.src.Status(),
		Timezones: timezones,
	}
	if s.db != nil {
		syncs, err := s.db.RecentSyncs(10)
		if err != nil {
			log.Printf("recent syncs: %v", err)
		}
		data.Syncs = syncs
	}
	w.WriteHeader(http.StatusOK)
	if err := pages.ExecuteTemplate(w, "index", data); err != nil {
		log.Printf("execute template: %v", err)
	}
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	form := r.PostForm
	err := s.cfg.Update(func(c *config.Config) {
		if v := form.Get("timezone"); v != "" {
			c.Timezone = v
		}
		if v := form.Get("ntpServer"); v != "" {
			c.NTPServer = v
		}
		if v, err := strconv.Atoi(form.Get("ntpSyncInterval")); err == nil {
			c.NTPSyncInterval = uint32(clamp(v, 1, 1440))
		}
		if v, err := strconv.Atoi(form.Get("brightness")); err == nil {
			c.Brightness = uint8(clamp(v, 0, 255))
		}
		if v := form.Get("color"); v != "" {
			c.Color = v
		}
		// Checkboxes are only present in the form when checked.
		c.BlinkDots = form.Has("blinkDots")
		c.Use24h = form.Has("use24h")
		c.HideLeadingZero24h = form.Has("hideLeadingZero24h")
		c.AutoDim = form.Has("autoDim")
		if v, err := strconv.Atoi(form.Get("dimStart")); err == nil {
			c.DimStartHour = uint8(clamp(v, 0, 23))
		}
		if v, err := strconv.Atoi(form.Get("dimEnd")); err == nil {
			c.DimEndHour = uint8(clamp(v, 0, 23))
		}
	})
	if err != nil {
		// The new settings are live even if persisting them failed; the
		// display keeps running either way.
		log.Printf("save config: %v", err)
	}
	snap := s.cfg.Snapshot()
	s.src.Configure(snap.Timezone, snap.NTPServer)

	w.WriteHeader(http.StatusOK)
	if err := pages.ExecuteTemplate(w, "saved", nil); err != nil {
		log.Printf("execute template: %v", err)
	}
}

func (s *Server) handleReboot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	if err := pages.ExecuteTemplate(w, "reboot", nil); err != nil {
		log.Printf("execute template: %v", err)
	}
	// Give the response time to reach the browser before exiting.
	go func() {
		time.Sleep(s.rebootDelay)
		s.events <- EventReboot
	}()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
