package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AlickH/MCProxy/discovery"
	"github.com/AlickH/MCProxy/internal/procsup"
	"github.com/jessevdk/go-flags"
)

// Run parses args, spawns the configured child outside any Orchestrator,
// runs the discovery handshake against it with a hard 5-second timeout,
// prints the discovered tool set as JSON, and terminates the child.
func Run(args []string) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return err
	}

	tools, err := discovery.Validate(context.Background(), procsup.Spec{
		Command: options.Command,
		Args:    options.Args,
		Dir:     options.Dir,
	}, "mcproxy-validate")
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(tools, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
