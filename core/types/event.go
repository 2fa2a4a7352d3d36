package types

// Event is a typed fact about a state transition, emitted by the engines and
// consumed by downstream subscribers such as the RPC layer and metrics.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
