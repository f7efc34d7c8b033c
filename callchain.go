package bucketd

type callchained struct {
	fn   func(*Search, FeatureFunc) (*Result, error)
	next *callchained
}

func (cc *callchained) add(f Feature) *callchained {
	n := &callchained{
		f.Process,
		cc,
	}

	return n
}

type callchain struct {
	root *callchained
}

func (cc *callchain) add(f Feature) {
	if cc.root == nil {
		cc.root = &callchained{}
	}

	cc.root = cc.root.add(f)
}

func (cc *callchain) exec(s *Search, fn FeatureFunc) (*Result, error) {
	n := cc.root
	if n == nil {
		return fn(s)
	}

	for n.fn != nil {
		fn = func(ff FeatureFunc, c *callchained) FeatureFunc {
			return func(s *Search) (*Result, error) {
				return c.fn(s, ff)
			}
		}(fn, n)
		n = n.next
	}

	return fn(s)
}
