package permission

import (
	"errors"
	"fmt"

	"github.com/templui/docvault/internal/model"
)

var ErrInsufficientPermission = errors.New("insufficient permission")

// DeniedError carries the reason for a denial. It matches ErrInsufficientPermission.
type DeniedError struct {
	ActorID    string
	TargetType model.TargetKind
	TargetID   string
	Capability model.Capability
	Rule       string
	Reason     string
}

func (e *DeniedError) Error() string {
	if e.TargetID == "" {
		return fmt.Sprintf("%s: %s", ErrInsufficientPermission, e.Reason)
	}
	return fmt.Sprintf("%s: %s on %s %s: %s", ErrInsufficientPermission, e.Capability, e.TargetType, e.TargetID, e.Reason)
}

func (e *DeniedError) Unwrap() error {
	return ErrInsufficientPermission
}
