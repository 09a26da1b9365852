package types

// IsValidOp reports whether op is a member of the closed action vocabulary.
func IsValidOp(op Op) bool {
	switch op {
	case OpAdd, OpPatch, OpRemove:
		return true
	}
	return false
}

// ValidateAction checks the structural invariants of a single action before
// it enters the diff pipeline. add needs a full node, patch and remove only
// need id+type to locate their target.
func ValidateAction(a StateAction) error {
	if !IsValidOp(a.Op) {
		return ErrInvalidOp
	}
	if a.Data.ID == "" || a.Data.Type == "" {
		return ErrMissingNodeIdentity
	}
	return nil
}
