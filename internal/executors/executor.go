package executors

import "context"

// Executor is a named handler implementing the uniform execution contract
// for one or more phases. Executors never touch the context store directly;
// they see only their bound inputs and return one output value.
type Executor interface {
	Name() string
	Capabilities() Capabilities
	Execute(ctx context.Context, method string, inputs map[string]any) (any, error)
}

// Capabilities is the one-time descriptor recorded at registration.
// It is consulted at validation time, never re-probed per call.
type Capabilities struct {
	Description string   `json:"description,omitempty"`
	Methods     []string `json:"methods,omitempty"` // empty = any method accepted
	FanOut      bool     `json:"fan_out"`           // performs internal sub-task fan-out
}

// SupportsMethod reports whether the descriptor admits the given method.
func (c Capabilities) SupportsMethod(method string) bool {
	if len(c.Methods) == 0 {
		return true
	}
	for _, m := range c.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// Info is a summary of a registered executor for listing.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	FanOut      bool   `json:"fan_out,omitempty"`
}
