package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/AlickH/MCProxy"
	"github.com/AlickH/MCProxy/bridgecfg"
	"github.com/jessevdk/go-flags"
)

// Run parses args, loads the bridge config, starts every configured
// bridge, and blocks until SIGINT or SIGTERM, tearing every bridge down
// before returning.
func Run(args []string) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return err
	}

	cfgs, err := bridgecfg.Load(options.Config)
	if err != nil {
		return err
	}

	orch := mcproxy.NewOrchestrator(mcproxy.Hooks{
		OnLog: func(instanceID, stream, line string) {
			log.Printf("[%s/%s] %s", instanceID, stream, line)
		},
		OnStatusChanged: func(instanceID string, status mcproxy.Status) {
			log.Printf("[%s] status -> %s", instanceID, status)
		},
		OnToolsChanged: func(instanceID string, tools []bridgecfg.Tool) {
			log.Printf("[%s] discovered %d tools", instanceID, len(tools))
		},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := orch.StartAll(ctx, cfgs); err != nil {
		log.Printf("one or more bridges failed to start: %v", err)
	}

	<-ctx.Done()
	log.Print("shutting down")
	return orch.StopAll()
}
