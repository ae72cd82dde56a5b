// sevenclockd drives a two-unit 7-segment LED clock: WS2812 strips on
// SPI, NTP for time, and a web page for settings, status and a live
// preview of the display.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hwclocks/sevenclock/clock"
	"github.com/hwclocks/sevenclock/config"
	"github.com/hwclocks/sevenclock/display"
	"github.com/hwclocks/sevenclock/synclog"
	"github.com/hwclocks/sevenclock/timesync"
	"github.com/hwclocks/sevenclock/web"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	bind       = flag.String("bind", ":8080", "address to bind for the settings/metrics server")
	configPath = flag.String("config", "config.json", "path to the persisted settings file")
	dbPath     = flag.String("db", "", "path to the sync history database; empty to disable")
	hourSPI    = flag.String("hour-spi", "", "spi port for the hour strip; empty for preview-only")
	minuteSPI  = flag.String("minute-spi", "", "spi port for the minute strip; empty for preview-only")
)

func openStrip(name, port string) (*display.Strip, error) {
	if port == "" {
		return display.NewStrip(name, nil)
	}
	p, err := spireg.Open(port)
	if err != nil {
		return nil, err
	}
	return display.NewStrip(name, p)
}

func main() {
	flag.Parse()
	if _, err := host.Init(); err != nil {
		log.Fatalf("init periph.io: %v", err)
	}

	cfg, err := config.Open(*configPath)
	if err != nil {
		log.Fatalf("open config: %v", err)
	}

	var db *synclog.DB
	if *dbPath == "" {
		log.Println("not recording sync history; -db not set")
	} else {
		if db, err = synclog.OpenDatabase(*dbPath); err != nil {
			log.Fatalf("open sync database: %v", err)
		}
	}

	src := timesync.New(db)
	snap := cfg.Snapshot()
	src.Configure(snap.Timezone, snap.NTPServer)

	hour, err := openStrip("hour", *hourSPI)
	if err != nil {
		log.Fatalf("open hour strip: %v", err)
	}
	minute, err := openStrip("minute", *minuteSPI)
	if err != nil {
		log.Fatalf("open minute strip: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	events := make(chan web.Event, 1)
	web.New(cfg, src, hour, minute, db, events).Register(http.DefaultServeMux)

	httpDoneCh := make(chan error)
	httpServer := http.Server{Addr: *bind}
	go func() {
		log.Printf("http server listening on %s", httpServer.Addr)
		err := httpServer.ListenAndServe()
		select {
		case httpDoneCh <- err:
		case <-ctx.Done():
		}
		close(httpDoneCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	sched := clock.NewScheduler(cfg, display.NewComposer(src, cfg, hour, minute), src)
	loopDoneCh := make(chan error)
	go func() {
		err := sched.Run(ctx)
		select {
		case loopDoneCh <- err:
		case <-ctx.Done():
		}
		close(loopDoneCh)
	}()

	httpAlive := true
	select {
	case err := <-httpDoneCh:
		log.Printf("http server died: %v", err)
		httpAlive = false
	case err := <-loopDoneCh:
		log.Printf("clock loop died: %v", err)
	case <-sigCh:
		log.Printf("interrupt")
	case ev := <-events:
		switch ev {
		case web.EventReboot:
			log.Printf("reboot requested; exiting so the service manager restarts us")
		}
	}
	signal.Stop(sigCh)
	cancel()

	// Blank the strips on the way out so a dark clock means no power and
	// a frozen clock means a wedged process.
	if err := hour.Blank(); err != nil {
		log.Printf("blank hour strip: %v", err)
	}
	if err := minute.Blank(); err != nil {
		log.Printf("blank minute strip: %v", err)
	}
	if httpAlive {
		tctx, c := context.WithTimeout(context.Background(), time.Second)
		httpServer.Shutdown(tctx)
		c()
	}
	os.Exit(1)
}
