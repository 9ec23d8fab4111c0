package grid

import "fmt"

// transformTolerance is the relative tolerance used when comparing transforms
// read back from text headers.
const transformTolerance = 1e-9

// AlignmentError reports that a grid does not share the reference grid's
// shape or transform. It is a precondition failure: no reduction may run on
// misaligned inputs.
type AlignmentError struct {
	Name     string // grid that failed the check
	Property string // "shape" or "transform"
	Want     string
	Got      string
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("grid %q %s mismatch: want %s, got %s", e.Name, e.Property, e.Want, e.Got)
}

// CheckAligned verifies that other has the same shape and transform as ref.
func CheckAligned(ref, other *Grid, name string) error {
	if ref == nil || other == nil {
		return fmt.Errorf("grid %q: nil grid in alignment check", name)
	}
	if err := checkShape(ref.Rows, ref.Cols, other, name); err != nil {
		return err
	}
	return checkTransform(ref.Transform, other, name)
}

func checkTransform(want Transform, other *Grid, name string) error {
	if !want.Equal(other.Transform, transformTolerance) {
		return &AlignmentError{
			Name:     name,
			Property: "transform",
			Want:     want.String(),
			Got:      other.Transform.String(),
		}
	}
	return nil
}

func checkShape(rows, cols int, other *Grid, name string) error {
	if other.Rows != rows || other.Cols != cols || len(other.Data) != rows*cols {
		return &AlignmentError{
			Name:     name,
			Property: "shape",
			Want:     fmt.Sprintf("%dx%d", rows, cols),
			Got:      fmt.Sprintf("%dx%d (%d samples)", other.Rows, other.Cols, len(other.Data)),
		}
	}
	return nil
}
