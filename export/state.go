package export

import "github.com/orsinium-labs/enum"

// State tracks where an exporter is in its pass over one mediapackage.
type State enum.Member[string]

var (
	StateIdle      = State{Value: "idle"}
	StateFetching  = State{Value: "fetching"}
	StateFiltering = State{Value: "filtering"}
	StateCopying   = State{Value: "copying"}
	StateDone      = State{Value: "done"}
	StateFailed    = State{Value: "failed"}
	States         = enum.New(StateIdle, StateFetching, StateFiltering, StateCopying, StateDone, StateFailed)
)
