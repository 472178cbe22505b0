package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/chrisvdg/contentserver/config"
	"github.com/chrisvdg/contentserver/control"
	"github.com/chrisvdg/contentserver/server"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	root := pflag.StringP("root", "r", ".", "server root holding json/, the templates and the static files")
	drainTimeout := pflag.DurationP("drain-timeout", "d", server.DefaultDrainTimeout, "how long a stop waits for open requests")
	watch := pflag.BoolP("watch", "w", true, "Report configuration changes made on disk")
	verbose := pflag.BoolP("verbose", "v", false, "Verbose output")
	pflag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	// SIGTERM quits, an interrupt only cancels the current prompt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)

	accessLog := log.StandardLogger().WriterLevel(log.DebugLevel)
	defer accessLog.Close()

	console := control.NewConsole(os.Stdout)
	p := control.New(&control.Config{
		Store:        config.NewStore(*root),
		Prompter:     control.NewLinePrompter(os.Stdin, console, interrupts),
		Console:      console,
		DrainTimeout: *drainTimeout,
		Metrics:      server.NewMetrics(),
		AccessLog:    accessLog,
		Watch:        *watch,
	})

	err := p.Run(ctx)
	if err != nil {
		log.Fatalf("%s failed: %s", control.Stage(err), err)
	}
}
