package modkit

// Option configures a ModuleRegistry, Compiler or linker.
type Option interface {
	apply(*options)
}

type options struct {
	logger Logger
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// WithLogger sets the logger. The default discards everything.
func WithLogger(l Logger) Option {
	return optionFunc(func(o *options) {
		if l != nil {
			o.logger = l
		}
	})
}

func buildOptions(opts []Option) *options {
	o := &options{logger: NopLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(o)
		}
	}
	return o
}
