package persistence

// Option applies a configuration option to the Adapter.
type Option func(*Adapter)

// WithKey sets the storage key.
func WithKey(key string) Option {
	return func(a *Adapter) {
		if key != "" {
			a.key = key
		}
	}
}
