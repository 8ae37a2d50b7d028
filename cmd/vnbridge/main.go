package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/vectornav/internal/api"
	"github.com/banshee-data/vectornav/internal/config"
	"github.com/banshee-data/vectornav/internal/db"
	"github.com/banshee-data/vectornav/internal/frame"
	"github.com/banshee-data/vectornav/internal/link"
	"github.com/banshee-data/vectornav/internal/msg"
	"github.com/banshee-data/vectornav/internal/pub"
	"github.com/banshee-data/vectornav/internal/sensor"
	"github.com/banshee-data/vectornav/internal/serialport"
	"github.com/banshee-data/vectornav/internal/sim"
	"github.com/banshee-data/vectornav/internal/transform"
	"github.com/banshee-data/vectornav/internal/vnproto"
)

var (
	configPath = flag.String("config", "", "Path to YAML config file")
	devMode    = flag.Bool("dev", false, "Run against a simulated device")
	listen     = flag.String("listen", "", "Listen address (overrides config)")
	serialPort = flag.String("port", "", "Serial device path (overrides config)")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *serialPort != "" {
		cfg.SerialPort = *serialPort
	}

	covariances, err := loadCovariances(cfg)
	if err != nil {
		log.Fatalf("invalid covariance config: %v", err)
	}

	var factory serialport.Factory
	if *devMode {
		// The simulated device starts at the lowest supported rate so dev
		// runs exercise the full negotiation path.
		device := sim.NewDevice(9600)
		defer device.Close()
		factory = device
	} else {
		factory = &serialport.RealFactory{}
	}

	sen := sensor.New(factory, cfg.SerialPort)
	origin := transform.NewOriginTracker()
	publisher := pub.NewPublisher()
	defer publisher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	negotiator := link.NewNegotiator(sen, link.Config{
		RequestedBaud:   cfg.SerialBaud,
		ResponseTimeout: cfg.ResponseTimeout(),
		RetransmitDelay: cfg.RetransmitDelay(),
	})

	established := true
	if err := negotiator.Establish(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		// Keep the process alive so the failure is observable over the API.
		log.Printf("running degraded, no device link: %v", err)
		established = false
	}

	var identity sensor.Identity
	if established {
		identity, err = sen.ReadIdentity()
		if err != nil {
			log.Fatalf("failed to read device identity: %v", err)
		}
		log.Printf("connected to %s (firmware %s, serial %d)",
			identity.Model, identity.Firmware, identity.Serial)
	}

	transformer := transform.New(transform.Config{
		FrameID: cfg.FrameID,
		Frame: frame.Options{
			NEDToENU:   cfg.TFNEDToENU,
			FrameBased: cfg.FrameBasedENU,
		},
		Covariances: covariances,
		Family:      identity.Family,
		Origin:      origin,
	})

	if established {
		spec := link.DefaultStreamSpec(cfg.AsyncOutputRate, cfg.FixedIMURate)
		err := link.ConfigureStream(sen, spec, func(cd vnproto.CompositeData) {
			publisher.Publish(transformer.OnPacket(cd))
		})
		if err != nil {
			log.Fatalf("failed to configure telemetry stream: %v", err)
		}
	}

	var wg sync.WaitGroup

	if cfg.UDPDest != "" {
		sink, err := pub.NewUDPSink(cfg.UDPDest)
		if err != nil {
			log.Fatalf("failed to open UDP sink: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sink.Close()
			forwardBatches(ctx, publisher, "udp", sink.Send)
		}()
	}

	if cfg.DatabasePath != "" {
		store, err := db.NewDB(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer store.Close()
			forwardBatches(ctx, publisher, "db", store.RecordBatch)
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		status := func() api.Status {
			published, dropped := publisher.Stats()
			return api.Status{
				Identity:    identity,
				Connected:   sen.Connected(),
				Established: established,
				Baud:        sen.Baud(),
				Origin:      origin.Current(),
				Sensor:      sen.Stats(),
				Published:   published,
				Dropped:     dropped,
			}
		}

		mux := api.NewServer(status, origin, publisher).ServeMux()
		server := &http.Server{
			Addr:    cfg.Listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()

	// Ordered teardown: stop the callback first, give in-flight packets a
	// moment to drain, then close the port.
	sen.UnregisterAsyncPacketHandler()
	time.Sleep(100 * time.Millisecond)
	if err := sen.Disconnect(); err != nil {
		log.Printf("disconnect error: %v", err)
	}
	log.Printf("graceful shutdown complete")
}

func loadCovariances(cfg config.Config) (transform.Covariances, error) {
	var cov transform.Covariances
	var err error
	if cov.Orientation, err = config.Covariance(cfg.OrientationCovariance); err != nil {
		return cov, err
	}
	if cov.AngularVel, err = config.Covariance(cfg.AngularVelCovariance); err != nil {
		return cov, err
	}
	if cov.LinearAccel, err = config.Covariance(cfg.LinearAccelCovariance); err != nil {
		return cov, err
	}
	return cov, nil
}

// forwardBatches drains the publisher into a sink until the context ends.
func forwardBatches(ctx context.Context, p *pub.Publisher, name string, send func(msg.Batch) error) {
	id, ch := p.Subscribe()
	defer p.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-ch:
			if !ok {
				return
			}
			if err := send(batch); err != nil {
				log.Printf("%s sink error: %v", name, err)
			}
		}
	}
}
