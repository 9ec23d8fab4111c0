package region

import "fmt"

// MissingInputError reports a required grid or dump that a region does not
// provide.
type MissingInputError struct {
	Region   string
	Artifact string
	Err      error
}

func (e *MissingInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("region %s: missing %s: %v", e.Region, e.Artifact, e.Err)
	}
	return fmt.Sprintf("region %s: missing %s", e.Region, e.Artifact)
}

func (e *MissingInputError) Unwrap() error { return e.Err }
