package util

import "bytes"

// CmdOutput holds the stdout and stderr of a finished command invocation. The buffers are written to while the
// command is still streaming its output live, so they are only safe to read after the command has exited.
type CmdOutput struct {
	Stdout bytes.Buffer
	Stderr bytes.Buffer
}
