package types

// Event is the canonical structured payload emitted alongside state
// transitions. Attributes are flat string pairs so downstream consumers
// (RPC subscribers, indexers) can render them without schema knowledge.
type Event struct {
	Type       string
	Attributes map[string]string
}
