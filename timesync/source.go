// Package timesync keeps the clock's idea of wall-clock time.  It
// queries the configured NTP server periodically, holds the measured
// offset from the system clock, and applies the configured timezone.
// Until the first successful sync it reports the time as unavailable so
// the display never shows an unsynced time.
package timesync

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/facebookincubator/ntp/protocol/ntp"
	"github.com/hwclocks/sevenclock/synclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
)

var (
	resyncsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resyncs",
		Help: "count of NTP resync attempts",
	})
	resyncErrorsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resync_errors",
		Help: "count of NTP resync attempts that failed",
	})
	offsetMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clock_offset_seconds",
		Help: "offset between the system clock and NTP time, as of the last sync",
	})
)

const queryTimeout = 5 * time.Second

// Status is a point-in-time view of the source for the status page.
type Status struct {
	Server   string
	Location string
	Synced   bool
	Offset   time.Duration
	RTT      time.Duration
	LastSync time.Time
	LastErr  string
}

// Source is the clock's time source.
type Source struct {
	db *synclog.DB // may be nil
	l  trace.EventLog

	mu       sync.RWMutex
	loc      *time.Location
	server   string
	offset   time.Duration
	synced   bool
	lastSync time.Time
	lastRTT  time.Duration
	lastErr  error
}

// New returns a source that records its sync history to db; db may be
// nil to disable history.
func New(db *synclog.DB) *Source {
	return &Source{
		db:  db,
		l:   trace.NewEventLog("service", "ntp"),
		loc: time.UTC,
	}
}

// Configure applies a timezone rule and NTP server, typically after a
// settings change.  The next sync uses the new server; the next render
// pass uses the new zone.
func (s *Source) Configure(tzRule, server string) {
	loc := resolveLocation(tzRule)
	s.mu.Lock()
	s.loc = loc
	s.server = server
	s.mu.Unlock()
	s.l.Printf("configured: tz %q -> %v, server %s", tzRule, loc, server)
}

// Now returns the current local time.  ok is false until the first
// successful sync; callers skip their render pass in that case.
func (s *Source) Now() (t time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.synced {
		return time.Time{}, false
	}
	return time.Now().Add(s.offset).In(s.loc), true
}

// Status returns the source's state for display.
func (s *Source) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		Server:   s.server,
		Location: s.loc.String(),
		Synced:   s.synced,
		Offset:   s.offset,
		RTT:      s.lastRTT,
		LastSync: s.lastSync,
	}
	if s.lastErr != nil {
		st.LastErr = s.lastErr.Error()
	}
	return st
}

// Sync performs one NTP exchange against the configured server and, on
// success, adopts the measured offset.
func (s *Source) Sync(ctx context.Context) error {
	s.mu.RLock()
	server := s.server
	s.mu.RUnlock()

	resyncsCounter.Inc()
	offset, rtt, err := query(ctx, server)
	if err != nil {
		resyncErrorsCounter.Inc()
		s.l.Errorf("sync %s: %v", server, err)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		if s.db != nil {
			if dbErr := s.db.RecordFailure(server, err); dbErr != nil {
				s.l.Errorf("record sync failure: %v", dbErr)
			}
		}
		return fmt.Errorf("sync %s: %w", server, err)
	}

	s.mu.Lock()
	s.offset = offset
	s.lastRTT = rtt
	s.synced = true
	s.lastSync = time.Now()
	s.lastErr = nil
	s.mu.Unlock()
	offsetMetric.Set(offset.Seconds())
	s.l.Printf("synced to %s: offset %v, rtt %v", server, offset, rtt)
	if s.db != nil {
		if err := s.db.RecordSync(server, offset, rtt); err != nil {
			s.l.Errorf("record sync: %v", err)
		}
	}
	return nil
}

// query runs a single client-mode NTP exchange and returns the clock
// offset and round-trip delay.
func query(ctx context.Context, server string) (offset, rtt time.Duration, err error) {
	addr := server
	if _, _, err := net.SplitHostPort(server); err != nil {
		addr = net.JoinHostPort(server, "123")
	}
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return 0, 0, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(queryTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return 0, 0, fmt.Errorf("set deadline: %w", err)
	}

	// LI 0, version 3, client mode.
	req := &ntp.Packet{Settings: 0x1B}
	t1 := time.Now()
	if err := binary.Write(conn, binary.BigEndian, req); err != nil {
		return 0, 0, fmt.Errorf("send request: %w", err)
	}
	resp := &ntp.Packet{}
	if err := binary.Read(conn, binary.BigEndian, resp); err != nil {
		return 0, 0, fmt.Errorf("read response: %w", err)
	}
	t4 := time.Now()
	if resp.Stratum == 0 {
		return 0, 0, fmt.Errorf("kiss of death (stratum 0)")
	}

	t2 := ntp.Unix(resp.RxTimeSec, resp.RxTimeFrac)
	t3 := ntp.Unix(resp.TxTimeSec, resp.TxTimeFrac)
	offset = (t2.Sub(t1) + t3.Sub(t4)) / 2
	rtt = t4.Sub(t1) - t3.Sub(t2)
	return offset, rtt, nil
}
