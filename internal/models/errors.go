package models

// ValidationError reports a model-level invariant violation. Field is empty
// for errors that concern the record as a whole.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}
