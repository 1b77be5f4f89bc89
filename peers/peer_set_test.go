package peers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPeerSetAddresses(t *testing.T) {
	s := NewPeerSet(5)
	assert.Equal(t, 5, s.Len())
	assert.Equal(t, "127.0.0.1:9002", s.ByID[2].NetAddr)
}

func TestOthersExcludesSelf(t *testing.T) {
	s := NewPeerSet(3)
	others := s.Others(1)
	assert.Len(t, others, 2)
	for _, p := range others {
		assert.NotEqual(t, 1, p.ID)
	}
}
