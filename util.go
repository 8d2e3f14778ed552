package memscope

import (
	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint
}

func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

// IsMultipleOf reports whether value is a whole number of units. Pool extents
// and size-class byte sizes are always whole words, so region formatting and
// heap creation validate their inputs with this.
func IsMultipleOf(value, unit int) bool {
	return unit > 0 && value%unit == 0
}
