package main

// Options are the standalone validator's command-line flags: enough to
// spawn one child and nothing else.
type Options struct {
	Command string   `short:"c" long:"command" description:"child command to spawn" required:"true"`
	Args    []string `short:"a" long:"arg" description:"argument to pass the child, repeatable"`
	Dir     string   `short:"d" long:"dir" description:"working directory for the child"`
}
