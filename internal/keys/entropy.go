package keys

// EntropyEstimator reports the kernel's estimate of available entropy in bits.
// Implementations must not block.
type EntropyEstimator interface {
	EntropyEstimate() (int, error)
}

// EntropyFunc adapts a plain function to EntropyEstimator.
type EntropyFunc func() (int, error)

func (f EntropyFunc) EntropyEstimate() (int, error) { return f() }

// SystemEntropy reads the estimate from the operating system.
type SystemEntropy struct{}

func (SystemEntropy) EntropyEstimate() (int, error) { return systemEntropy() }
