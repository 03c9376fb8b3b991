package validation

import (
	"fmt"
	"strings"

	"github.com/makr-code/VCC-Veritas-sub012/internal/expressions"
	"github.com/makr-code/VCC-Veritas-sub012/internal/runctx"
	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// Validate performs semantic analysis on a decoded pipeline definition.
// Checks: unique IDs and output keys, strictly increasing order, binding
// paths referencing only strictly earlier phases, registered executors,
// compilable expressions, and a sane concurrency cap for fan-out phases.
// Pure function of its inputs; no side effects.
func Validate(cfg *schema.PipelineConfig, lookup ExecutorLookup, engines *expressions.Set) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if cfg == nil {
		result.AddError("", schema.ErrCodeConfig, "pipeline config is nil")
		return result
	}
	if len(cfg.Phases) == 0 {
		result.AddError("phases", schema.ErrCodeConfig, "pipeline declares no phases")
		return result
	}

	ids := make(map[string]int, len(cfg.Phases))
	// keyOrder maps each output key to the declaring phase's order value,
	// seeded with the reserved input root (always resolvable).
	keyOrder := map[string]int{runctx.InputKey: -1}
	hasFanOut := false
	prevOrder := 0

	for i := range cfg.Phases {
		phase := &cfg.Phases[i]
		path := fmt.Sprintf("phases[%d]", i)

		if phase.ID == "" {
			result.AddError(path+".id", schema.ErrCodeConfig, "phase id is empty")
			continue
		}
		if dup, exists := ids[phase.ID]; exists {
			result.AddError(path+".id", schema.ErrCodeConfig,
				fmt.Sprintf("duplicate phase id %q (first declared at phases[%d])", phase.ID, dup))
		}
		ids[phase.ID] = i

		if i > 0 && phase.Order <= prevOrder {
			result.AddError(path+".order", schema.ErrCodeConfig,
				fmt.Sprintf("phase %q order %d is not strictly greater than the previous phase's %d",
					phase.ID, phase.Order, prevOrder))
		}
		prevOrder = phase.Order

		key := phase.StoreKey()
		if _, exists := keyOrder[key]; exists {
			result.AddError(path+".output_key", schema.ErrCodeConfig,
				fmt.Sprintf("output key %q already in use", key))
		}

		validateExecutorRef(phase, path, lookup, result)
		if lookup != nil && lookup.FanOut(phase.Executor) {
			hasFanOut = true
		}

		for j := range phase.Inputs {
			validateBinding(&phase.Inputs[j], phase,
				fmt.Sprintf("%s.inputs[%d]", path, j), keyOrder, engines, result)
		}

		if phase.EnabledIf != "" && engines != nil {
			if cel, err := engines.Get("cel"); err == nil {
				if err := cel.Check(phase.EnabledIf); err != nil {
					result.AddError(path+".enabled_if", schema.ErrCodeConfig,
						fmt.Sprintf("condition does not compile: %s", err.Error()))
				}
			}
		}

		if phase.TimeoutMs < 0 {
			result.AddError(path+".timeout_ms", schema.ErrCodeConfig, "timeout must not be negative")
		}

		// Register the key only after the phase's own bindings are checked,
		// so self-references are rejected.
		keyOrder[key] = phase.Order
	}

	if hasFanOut && cfg.Flags.MaxParallel < 1 {
		result.AddError("global_flags.max_parallel", schema.ErrCodeConfig,
			"max_parallel must be at least 1 when fan-out phases exist")
	}

	validateSynthesis(&cfg.Synthesis, keyOrder, result)

	return result
}

// validateExecutorRef checks the executor name and method against the
// capability descriptors recorded at registration.
func validateExecutorRef(phase *schema.PhaseSpec, path string, lookup ExecutorLookup, result *schema.ValidationResult) {
	if phase.Executor == "" {
		result.AddError(path+".executor", schema.ErrCodeConfig,
			fmt.Sprintf("phase %q names no executor", phase.ID))
		return
	}
	if lookup == nil {
		return
	}
	if !lookup.Has(phase.Executor) {
		result.AddError(path+".executor", schema.ErrCodeConfig,
			fmt.Sprintf("executor %q not registered", phase.Executor))
		return
	}
	if !lookup.SupportsMethod(phase.Executor, phase.Method) {
		result.AddError(path+".method", schema.ErrCodeConfig,
			fmt.Sprintf("executor %q does not support method %q", phase.Executor, phase.Method))
	}
}

// validateBinding checks one input binding: shape, path references, and
// expression compilation.
func validateBinding(b *schema.InputBinding, phase *schema.PhaseSpec, path string, keyOrder map[string]int, engines *expressions.Set, result *schema.ValidationResult) {
	if b.Param == "" {
		result.AddError(path+".param", schema.ErrCodeConfig, "binding parameter name is empty")
	}

	switch {
	case b.Path != "" && b.Expression != "":
		result.AddError(path, schema.ErrCodeConfig,
			fmt.Sprintf("binding %q declares both a path and an expression", b.Param))
	case b.Path == "" && b.Expression == "":
		result.AddError(path, schema.ErrCodeConfig,
			fmt.Sprintf("binding %q declares neither a path nor an expression", b.Param))
	case b.Path != "":
		root := strings.SplitN(b.Path, ".", 2)[0]
		sourceOrder, known := keyOrder[root]
		if !known {
			result.AddError(path+".path", schema.ErrCodeConfig,
				fmt.Sprintf("path root %q does not reference the input or an earlier phase output", root))
		} else if sourceOrder >= phase.Order {
			result.AddError(path+".path", schema.ErrCodeConfig,
				fmt.Sprintf("path root %q references a phase with order %d >= this phase's order %d",
					root, sourceOrder, phase.Order))
		}
	default:
		if engines == nil {
			return
		}
		if !engines.Has(b.Engine) {
			result.AddError(path+".engine", schema.ErrCodeConfig,
				fmt.Sprintf("unknown expression engine %q", b.Engine))
			return
		}
		engine, err := engines.Get(b.Engine)
		if err == nil {
			if err := engine.Check(b.Expression); err != nil {
				result.AddError(path+".expression", schema.ErrCodeConfig,
					fmt.Sprintf("expression does not compile: %s", err.Error()))
			}
		}
	}
}

// validateSynthesis checks that synthesis sources name declared output keys.
func validateSynthesis(spec *schema.SynthesisSpec, keyOrder map[string]int, result *schema.ValidationResult) {
	if spec.PrimarySource != "" {
		if _, known := keyOrder[spec.PrimarySource]; !known {
			result.AddError("synthesis.primary_source", schema.ErrCodeConfig,
				fmt.Sprintf("primary source %q is not a declared output key", spec.PrimarySource))
		}
	}
	for i, src := range spec.ConclusionSources {
		if _, known := keyOrder[src]; !known {
			result.AddError(fmt.Sprintf("synthesis.conclusion_sources[%d]", i), schema.ErrCodeConfig,
				fmt.Sprintf("conclusion source %q is not a declared output key", src))
		}
	}
	if spec.FallbackConfidence < 0 || spec.FallbackConfidence > 1 {
		result.AddWarning("synthesis.fallback_confidence", schema.ErrCodeConfig,
			"fallback confidence outside [0, 1]")
	}
}
