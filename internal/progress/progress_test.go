package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBar_Quiet(t *testing.T) {
	b := New(3, "fires", true)
	b.Add(1)
	b.Add(1)
	assert.Equal(t, int64(2), b.Done())
	b.Finish()
}

func TestBar_Nil(t *testing.T) {
	var b *Bar
	b.Add(1)
	b.Finish()
	assert.Zero(t, b.Done())
}
