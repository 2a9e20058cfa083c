package roundup

import (
	"context"
	"errors"
	"fmt"

	"hackbot/internal/chat"
	logx "hackbot/pkg/logx"
)

// Rotation records the membership changes made to the award role.
type Rotation struct {
	Removed []string `json:"removed,omitempty"`
	Added   string   `json:"added,omitempty"`
	// Kept is set when the winner already held the role.
	Kept bool `json:"kept,omitempty"`
	// WinnerGone is set when the winner is no longer a guild member.
	WinnerGone bool `json:"winner_gone,omitempty"`
}

func (r Rotation) mutated() bool { return len(r.Removed) > 0 || r.Added != "" }

// RotationError reports an award rotation that stopped partway.
// Done holds the changes applied before the failing step.
type RotationError struct {
	Step   string
	UserID string
	Done   Rotation
	Err    error
}

func (e *RotationError) Error() string {
	state := "no changes applied"
	if e.Partial() {
		state = fmt.Sprintf("partial: removed %d, added %q", len(e.Done.Removed), e.Done.Added)
	}
	return fmt.Sprintf("award rotation failed at %s (user %s, %s): %v", e.Step, e.UserID, state, e.Err)
}

func (e *RotationError) Unwrap() error { return e.Err }

// Partial reports whether some membership changes were applied before the failure.
func (e *RotationError) Partial() bool { return e.Done.mutated() }

// setAwardHolder makes winnerID the only holder of roleID.
// Holders other than the winner lose the role; the winner gains it unless they
// already have it. Repeating the call after success changes nothing.
func setAwardHolder(ctx context.Context, p chat.Platform, log logx.Logger, guildID, roleID, winnerID string) (Rotation, error) {
	var rot Rotation
	fail := func(step, userID string, err error) error {
		return &RotationError{Step: step, UserID: userID, Done: rot, Err: err}
	}

	holders, err := p.RoleMembers(ctx, guildID, roleID)
	if err != nil {
		return rot, fail("list holders", "", err)
	}
	for _, m := range holders {
		if m.UserID == winnerID {
			rot.Kept = true
			continue
		}
		if err := p.RemoveRole(ctx, guildID, m.UserID, roleID); err != nil {
			return rot, fail("remove role", m.UserID, err)
		}
		rot.Removed = append(rot.Removed, m.UserID)
		log.Debug("award role removed", logx.String("user_id", m.UserID))
	}
	if rot.Kept {
		return rot, nil
	}

	member, err := p.Member(ctx, guildID, winnerID)
	if errors.Is(err, chat.ErrNotFound) {
		rot.WinnerGone = true
		log.Warn("award winner is no longer a member; role left unassigned", logx.String("user_id", winnerID))
		return rot, nil
	}
	if err != nil {
		return rot, fail("fetch winner", winnerID, err)
	}
	if member.HasRole(roleID) {
		rot.Kept = true
		return rot, nil
	}
	if err := p.AddRole(ctx, guildID, winnerID, roleID); err != nil {
		return rot, fail("add role", winnerID, err)
	}
	rot.Added = winnerID
	return rot, nil
}
