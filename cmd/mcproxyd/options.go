package main

// Options are the mcproxyd daemon's command-line flags.
type Options struct {
	Config string `short:"c" long:"config" description:"bridge config file (json or yaml)" required:"true"`
}
