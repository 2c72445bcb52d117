// Package lineframe turns a raw byte stream from a child process's stdout
// or stderr into complete lines. It buffers whatever partial line is left
// at the end of a read and carries it forward, so a line split across two
// TCP-style reads from an os.Pipe is never dropped or duplicated.
package lineframe
