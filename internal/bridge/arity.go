package bridge

import "fmt"

// Arity is a callee's declared output count as reported by the engine.
// Determined is false for variable output lists and uninspectable callees.
type Arity struct {
	Max        int
	Determined bool
}

// ResolveNargout decides how many outputs to request from the engine.
//
//	expected == 0   -> 0
//	determined      -> max(min(declared, expected), 1)
//	undetermined    -> max(expected, 1)
//
// The result is at least 1 unless the caller expects nothing.
func ResolveNargout(expected int, a Arity) int {
	if expected == 0 {
		return 0
	}
	if a.Determined {
		return max(min(a.Max, expected), 1)
	}
	return max(expected, 1)
}

// checkOverride validates an explicit output count against the declared
// maximum. Undetermined callees accept any count.
func checkOverride(name string, override int, a Arity) error {
	if override < 0 {
		return &Error{Code: ErrCodeArityMismatch, Name: name, Message: fmt.Sprintf("negative output count %d", override)}
	}
	if a.Determined && override > a.Max {
		return &Error{
			Code:    ErrCodeArityMismatch,
			Name:    name,
			Message: fmt.Sprintf("requested %d outputs, declared maximum is %d", override, a.Max),
		}
	}
	return nil
}
