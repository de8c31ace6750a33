package normalize

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithMinContentThreshold sets the populated fraction below which a column is dropped.
func WithMinContentThreshold(v float64) Option {
	return func(n *Normalizer) {
		if v >= 0 && v <= 1 {
			n.minContent = v
		}
	}
}

// WithMaxHeaderRows bounds how many leading rows may be treated as headers.
func WithMaxHeaderRows(v int) Option {
	return func(n *Normalizer) {
		if v > 0 {
			n.maxHeaderRows = v
		}
	}
}

// WithMaxHeaderLength sets the header truncation length (ellipsis included).
func WithMaxHeaderLength(v int) Option {
	return func(n *Normalizer) {
		if v > 3 {
			n.maxHeaderLength = v
		}
	}
}

// WithMinDataRows sets how many rows header detection must leave as data.
func WithMinDataRows(v int) Option {
	return func(n *Normalizer) {
		if v >= 0 {
			n.minDataRows = v
		}
	}
}
