package bucketd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeF struct {
	called bool
}

func (f *fakeF) Process(s *Search, next FeatureFunc) (*Result, error) {
	f.called = true
	return next(s)
}

func Test_Chain(t *testing.T) {
	a := &fakeF{}
	b := &fakeF{}
	c := &fakeF{}

	cc := &callchain{}
	cc.add(a)
	cc.add(b)
	cc.add(c)

	called := false
	_, err := cc.exec(NewSearch(), func(_ *Search) (*Result, error) {
		called = true
		return nil, nil
	})
	assert.NoError(t, err)

	assert.True(t, a.called)
	assert.True(t, b.called)
	assert.True(t, c.called)
	assert.True(t, called)
}

func Test_Chain_Empty(t *testing.T) {
	cc := &callchain{}

	called := false
	_, err := cc.exec(NewSearch(), func(_ *Search) (*Result, error) {
		called = true
		return nil, nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}
