package rpm

// Option configures [Open], [OpenDatabase], and [NewPlanner]. Not every
// option applies to every constructor; an option irrelevant to a given
// constructor is silently ignored, the same shape claircore's own
// constructors use for their functional options.
type Option func(*config)

type config struct {
	checkFileConflicts bool
	skipDigests        bool
}

func buildConfig(opts []Option) config {
	var c config
	for _, o := range opts {
		o(&c)
	}
	return c
}

// WithFileConflicts enables file-collision reporting through
// [Planner.Conflicts], per spec §4.6; without it Conflicts returns nothing.
func WithFileConflicts(enabled bool) Option {
	return func(c *config) { c.checkFileConflicts = enabled }
}

// WithSkipDigests disables [Open]'s sha1/md5 verification against the
// signature header. Useful for reading a package whose signature header
// was stripped, or for callers that will verify separately; spec §7
// otherwise treats a digest mismatch as a fatal Integrity error for that
// package.
func WithSkipDigests(skip bool) Option {
	return func(c *config) { c.skipDigests = skip }
}
