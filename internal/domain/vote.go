package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// VoteState is a voter's standing on a single review
type VoteState int

const (
	VoteNone VoteState = iota
	VoteLiked
	VoteDisliked
)

func (s VoteState) String() string {
	switch s {
	case VoteLiked:
		return "liked"
	case VoteDisliked:
		return "disliked"
	default:
		return "none"
	}
}

// VoteAction is a toggle requested by a voter
type VoteAction string

const (
	VoteActionLike    VoteAction = "like"
	VoteActionDislike VoteAction = "dislike"
)

// ParseVoteAction validates a raw vote action
func ParseVoteAction(s string) (VoteAction, error) {
	switch VoteAction(s) {
	case VoteActionLike, VoteActionDislike:
		return VoteAction(s), nil
	}
	return "", NewValidationError("action", fmt.Sprintf("unknown vote action %q", s))
}

// NextVoteState is the per (review, voter) transition table.
// Toggling the current state returns to NONE; toggling the opposite state switches sides.
func NextVoteState(current VoteState, action VoteAction) VoteState {
	switch action {
	case VoteActionLike:
		if current == VoteLiked {
			return VoteNone
		}
		return VoteLiked
	case VoteActionDislike:
		if current == VoteDisliked {
			return VoteNone
		}
		return VoteDisliked
	}
	return current
}

// VoteLedger holds the disjoint like and dislike sets of a review
type VoteLedger struct {
	Likes    []uuid.UUID
	Dislikes []uuid.UUID
}

// StateOf returns the voter's current state
func (l VoteLedger) StateOf(voterID uuid.UUID) VoteState {
	if contains(l.Likes, voterID) {
		return VoteLiked
	}
	if contains(l.Dislikes, voterID) {
		return VoteDisliked
	}
	return VoteNone
}

// HelpfulCount is |likes| - |dislikes|
func (l VoteLedger) HelpfulCount() int {
	return len(l.Likes) - len(l.Dislikes)
}

// Apply returns a new ledger with the toggle applied. The receiver is not modified.
// The voter is removed from both sets before being placed according to the new state,
// so a ledger that somehow held the voter twice is repaired rather than propagated.
func (l VoteLedger) Apply(voterID uuid.UUID, action VoteAction) VoteLedger {
	next := NextVoteState(l.StateOf(voterID), action)

	out := VoteLedger{
		Likes:    without(l.Likes, voterID),
		Dislikes: without(l.Dislikes, voterID),
	}

	switch next {
	case VoteLiked:
		out.Likes = append(out.Likes, voterID)
	case VoteDisliked:
		out.Dislikes = append(out.Dislikes, voterID)
	}

	return out
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, v := range ids {
		if v == id {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
