// Command paycheck4emud is the PayCheck 4 emulator daemon: it loads the
// construction-time option set, wires the engine to the USB CDC-ACM
// gadget device, optionally serves the Control Surface, and shuts down
// cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kcondict/paycheck4/internal/api"
	"github.com/kcondict/paycheck4/internal/config"
	"github.com/kcondict/paycheck4/internal/diag"
	"github.com/kcondict/paycheck4/internal/engine"
	"github.com/kcondict/paycheck4/internal/transport/serial"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("paycheck4emud", flag.ExitOnError)
	opts, err := config.Load(fs, args)
	if err != nil {
		return err
	}

	d := diag.NewLeveled(diag.NewStd(nil), opts.LogLevel)

	transportOpts := serial.DefaultOptions()
	transportOpts.Device = opts.SerialDevice
	xport, err := serial.Open(transportOpts)
	if err != nil {
		return fmt.Errorf("paycheck4emud: %w", err)
	}
	defer xport.Close()

	eng := engine.New(engineConfig(opts), xport, d)
	eng.Start()
	defer eng.Stop()

	go xport.Run(eng)

	var srv *http.Server
	if opts.ControlAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		router := gin.New()
		router.Use(gin.Recovery())
		api.Register(router, eng, api.Config{EnableInjection: opts.EnableInjection}, d)

		srv = &http.Server{Addr: opts.ControlAddr, Handler: router}
		go func() {
			d.Infof("control surface listening on %s", opts.ControlAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				d.Errorf("control surface error: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	d.Infof("shutting down")
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			d.Errorf("control surface shutdown: %v", err)
		}
	}
	return nil
}

func engineConfig(opts config.Options) engine.Config {
	cfg := engine.DefaultConfig()
	cfg.StatusReportingInterval = opts.StatusReportingInterval
	cfg.Framer.MinMessageSize = opts.MinMessageSize
	cfg.Framer.MaxMessageSize = opts.MaxMessageSize
	cfg.Framer.ReassemblyTimeout = opts.ReassemblyTimeout
	cfg.PrintJob.PrintStartDelay = opts.PrintStartDelay
	cfg.PrintJob.ValidationDelay = opts.ValidationDelay
	cfg.PrintJob.BusyStateChangeDelay = opts.BusyStateChangeDelay
	cfg.PrintJob.TofStateChangeDelay = opts.TofStateChangeDelay
	cfg.PrintJob.PaperInChuteSetDelay = opts.PaperInChuteSetDelay
	cfg.PrintJob.PaperInChuteClearDelay = opts.PaperInChuteClearDelay
	cfg.Broadcast.UnitAddress = opts.UnitAddress[0]
	cfg.Broadcast.SoftwareVersion = opts.SoftwareVersion
	return cfg
}
