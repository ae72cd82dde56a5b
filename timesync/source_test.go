package timesync

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/facebookincubator/ntp/protocol/ntp"
)

// fakeServer answers one NTP query on loopback.  Its receive and
// transmit timestamps are the real time shifted by offset, so a correct
// client measures approximately that offset.
func fakeServer(t *testing.T, offset time.Duration, stratum uint8) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { pc.Close() })
	go func() {
		buf := make([]byte, 128)
		_, addr, err := pc.ReadFrom(buf)
		if err != nil {
			return
		}
		sec, frac := ntp.Time(time.Now().Add(offset))
		resp := &ntp.Packet{
			Settings:   0x24, // LI 0, version 4, server mode
			Stratum:    stratum,
			RxTimeSec:  sec,
			RxTimeFrac: frac,
			TxTimeSec:  sec,
			TxTimeFrac: frac,
		}
		var b bytes.Buffer
		if err := binary.Write(&b, binary.BigEndian, resp); err != nil {
			return
		}
		pc.WriteTo(b.Bytes(), addr)
	}()
	return pc.LocalAddr().String()
}

func TestSyncMeasuresOffset(t *testing.T) {
	// Well above any loopback round-trip jitter.
	const serverAhead = 2 * time.Minute

	s := New(nil)
	s.Configure("UTC0", fakeServer(t, serverAhead, 2))
	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	st := s.Status()
	if !st.Synced {
		t.Fatal("source not synced after a successful exchange")
	}
	if diff := st.Offset - serverAhead; diff < -200*time.Millisecond || diff > 200*time.Millisecond {
		t.Errorf("measured offset %v, want about %v", st.Offset, serverAhead)
	}
	if st.RTT < 0 || st.RTT > time.Second {
		t.Errorf("implausible round-trip delay %v", st.RTT)
	}

	now, ok := s.Now()
	if !ok {
		t.Fatal("Now unavailable after sync")
	}
	if diff := now.Sub(time.Now().Add(serverAhead)); diff < -time.Second || diff > time.Second {
		t.Errorf("Now is %v away from server time", diff)
	}
}

func TestSyncRejectsKissOfDeath(t *testing.T) {
	s := New(nil)
	s.Configure("UTC0", fakeServer(t, 0, 0))
	if err := s.Sync(context.Background()); err == nil {
		t.Fatal("sync should fail on a stratum 0 reply")
	}
	if _, ok := s.Now(); ok {
		t.Error("a rejected reply must not mark the source synced")
	}
	if st := s.Status(); st.LastErr == "" {
		t.Error("status should carry the last error")
	}
}
