package chain

import (
	"github.com/pkg/errors"

	"github.com/xxnithicxx/Consensus-Lab-Project/common"
)

// AsStoreErr converts an InsertReport's non-Accepted outcome into a
// common.StoreErr, or returns nil for Accepted. Callers that want a single
// error value to log or propagate (rather than switching on Outcome
// themselves) use this instead of inspecting the report directly.
func AsStoreErr(hash string, report InsertReport) error {
	switch report.Outcome {
	case Accepted:
		return nil
	case Duplicate:
		return errors.WithStack(common.NewStoreErr("block", common.DuplicateKey, hash))
	case Orphaned:
		return errors.WithStack(common.NewStoreErr("block", common.OrphanKey, hash))
	case Invalid:
		return errors.Wrapf(
			common.NewStoreErr("block", common.KeyNotFound, hash),
			"invalid block %s: %s", hash, report.Reason,
		)
	default:
		return errors.Errorf("chain: unknown outcome for block %s", hash)
	}
}

// WrapSafetyViolation annotates a SafetyViolation with a StoreErr so it can
// be logged and propagated through the same error path as other store
// failures. The wrapped common.StoreErr (type common.SafetyViolation) stays
// recoverable via errors.As; the *SafetyViolation itself is carried only as
// the error message text.
func WrapSafetyViolation(v *SafetyViolation) error {
	return errors.Wrap(
		common.NewStoreErr("finality", common.SafetyViolation, v.ExistingHash),
		v.Error(),
	)
}
