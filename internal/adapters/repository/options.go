package repository

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithMaxItems bounds the queue; past it the most confident item is evicted.
func WithMaxItems(n int) Option {
	return func(s *TreapStore) {
		if n > 0 {
			s.maxItems = n
		}
	}
}
