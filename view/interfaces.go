package view

import "github.com/wfunc/boomberg/terminal"

// EngineFactory builds the engine behind a new terminal view. It is defined
// here so the client can wire engines back to the manager without an import cycle.
type EngineFactory interface {
	NewEngine(viewID int) *terminal.Engine
}
