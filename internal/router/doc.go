// Package router implements the Request Router: it remembers which
// connection (or session) is waiting for a response to a given JSON-RPC
// id, forwards request bodies to the child's stdin, and on every line the
// child emits, dispatches the matching response back to exactly one
// connection or broadcasts it as a notification.
package router
