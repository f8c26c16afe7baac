package capfloor

import (
	"errors"

	"github.com/meenmo/caplib/black"
)

var (
	// ErrNilIndex is returned when an instrument is built without an index.
	ErrNilIndex = errors.New("nil index")
	// ErrNilEngine is returned when an instrument is built without a pricing engine.
	ErrNilEngine = errors.New("nil pricing engine")
	// ErrNilCurve is returned when a required curve argument is nil.
	ErrNilCurve = errors.New("nil curve")
)

// Type distinguishes a cap from a floor.
type Type string

const (
	Cap   Type = "CAP"
	Floor Type = "FLOOR"
)

// OptionType maps the instrument side to the optionlet payoff: a caplet is
// a call on the forward rate, a floorlet a put.
func (t Type) OptionType() black.OptionType {
	if t == Floor {
		return black.Put
	}
	return black.Call
}
