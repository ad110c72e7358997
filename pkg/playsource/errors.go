package playsource

import "errors"

// Error taxonomy. The callback path never returns these: it only degrades
// (zero-fill). They surface on the control-thread API (AddModel) or via the
// warning subscription.
var (
	// ErrSampleRateMismatch is returned by AddModel when m's sample rate
	// differs from the rate already adopted from an earlier model.
	ErrSampleRateMismatch = errors.New("playsource: model sample rate does not match adopted source rate")

	// ErrNoSourceRate is returned by AddModel when called before any model
	// has established a source sample rate and m itself reports rate <= 0.
	ErrNoSourceRate = errors.New("playsource: model reports invalid sample rate")
)
