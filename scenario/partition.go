package scenario

import (
	"sync/atomic"
	"time"
)

// DefaultHeal is when the partition filter lifts, per spec.md §4.3.
const DefaultHeal = 15 * time.Second

// Split deterministically assigns each of N nodes to group A or group B,
// matching the N=5 example in spec.md §4.3 ({0,1}|{2,3,4}): the first
// floor(N/2) ids form group A, the rest form group B.
func Split(n int) (groupA, groupB []int) {
	half := n / 2
	for i := 0; i < n; i++ {
		if i < half {
			groupA = append(groupA, i)
		} else {
			groupB = append(groupB, i)
		}
	}
	return groupA, groupB
}

// PartitionController drops messages whose destination is in the other
// group from selfID's, until heal fires. It never delays a message that
// does get through.
type PartitionController struct {
	selfGroup map[int]struct{}
	healed    int32
}

// NewPartitionController builds a PartitionController for a node that
// belongs to whichever of groupA/groupB contains selfID, and schedules the
// heal after healAfter.
func NewPartitionController(selfID int, groupA, groupB []int, healAfter time.Duration) *PartitionController {
	group := groupB
	for _, id := range groupA {
		if id == selfID {
			group = groupA
			break
		}
	}

	members := make(map[int]struct{}, len(group))
	for _, id := range group {
		members[id] = struct{}{}
	}

	c := &PartitionController{selfGroup: members}
	time.AfterFunc(healAfter, c.heal)
	return c
}

func (c *PartitionController) heal() {
	atomic.StoreInt32(&c.healed, 1)
}

// Healed reports whether the partition has lifted.
func (c *PartitionController) Healed() bool {
	return atomic.LoadInt32(&c.healed) == 1
}

// ShouldDrop reports whether peerID is in the other group and the
// partition has not yet healed.
func (c *PartitionController) ShouldDrop(peerID int) bool {
	if c.Healed() {
		return false
	}
	_, sameGroup := c.selfGroup[peerID]
	return !sameGroup
}

// Delay is always zero: the partition scenario either drops a message or
// delivers it promptly, it never queues one.
func (c *PartitionController) Delay(peerID int) time.Duration {
	return 0
}
