package validation

// ExecutorLookup answers registry questions at validation time.
// Satisfied by *executors.Registry and test fakes.
type ExecutorLookup interface {
	Has(name string) bool
	FanOut(name string) bool
	SupportsMethod(name, method string) bool
}
