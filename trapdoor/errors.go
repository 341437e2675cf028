package trapdoor

import "github.com/pkg/errors"

var (
	// ErrTailBound reports a preimage whose norm exceeds the acceptance
	// bound. It is a statistical outcome; the caller may resample with a
	// fresh perturbation.
	ErrTailBound = errors.New("trapdoor: preimage exceeds tail bound")
	// ErrPerturbationConsumed reports a second use of a perturbation.
	ErrPerturbationConsumed = errors.New("trapdoor: perturbation already consumed")
	// ErrPerturbationMismatch reports a perturbation sampled for another basis.
	ErrPerturbationMismatch = errors.New("trapdoor: perturbation belongs to a different basis")
	// ErrTargetFormat reports a target that is not in evaluation format.
	ErrTargetFormat = errors.New("trapdoor: target must be in evaluation format")
	// ErrDimension reports a public matrix or target of the wrong shape or ring.
	ErrDimension = errors.New("trapdoor: operand shape does not match parameters")
	// ErrBasisMismatch reports a public matrix that does not belong to the
	// basis.
	ErrBasisMismatch = errors.New("trapdoor: public matrix does not belong to the basis")
	// ErrParamsMismatch reports a basis generated under other parameters.
	ErrParamsMismatch = errors.New("trapdoor: basis was generated under different parameters")
	// ErrNotPositiveDefinite reports a perturbation covariance that is not
	// positive definite, which means the Gaussian widths are too small.
	ErrNotPositiveDefinite = errors.New("trapdoor: perturbation covariance is not positive definite")
)
