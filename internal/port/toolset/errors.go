package toolset

import "errors"

// ErrUnknownTool is returned when the model calls a tool that is not bound.
var ErrUnknownTool = errors.New("unknown tool")
