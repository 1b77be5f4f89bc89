// Package scenario implements the adversarial network conditions from
// spec.md §4.3: per-message delay injection and group partition/heal. Both
// are transport-level concerns, local to each node but globally consistent
// because every node derives its behaviour from the same run seed and
// config, grounded in the teacher's src/simulator/scenarios.py split/heal
// design (see original_source/), reimplemented here as a Go interface the
// node's outbound send path (node.sendTo) consults before sending.
package scenario

import "time"

// Controller decides, for a single node, whether and when an outbound
// message to a given peer should be sent.
type Controller interface {
	// Delay returns how long to hold a message addressed to peerID before
	// sending it. Zero means send immediately.
	Delay(peerID int) time.Duration

	// ShouldDrop reports whether a message from self to peerID must be
	// dropped outright (partition scenario only; delay scenario never
	// drops).
	ShouldDrop(peerID int) bool
}
