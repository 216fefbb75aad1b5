package membership

import (
	"fmt"
	"math/big"
	"slices"

	"github.com/limitlxx/kirito-sdk-sub003/events"
)

// AddMember appends a commitment to the group's member set and recomputes
// the root. Only the group admin (or the global owner) may add members.
//
// A reverse-index hit alone does not reject the add: the referenced slot is
// re-read first, so a stale index entry can never block a legitimate
// re-add. The stale entry is dropped and the add proceeds.
func (e *Engine) AddMember(caller *big.Int, groupID uint64, commitment *big.Int) error {
	if commitment == nil || commitment.Sign() == 0 {
		return fmt.Errorf("group %d: commitment must be non-zero", groupID)
	}

	e.mu.Lock()
	g, ok := e.groups[groupID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("group %d: %w", groupID, ErrNotFound)
	}
	if err := e.authorize(caller, g); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("group %d: %w", groupID, err)
	}

	if idx, hit := g.index[key(commitment)]; hit {
		if int(idx) < len(g.slots) && g.slots[idx].Cmp(commitment) == 0 {
			e.mu.Unlock()
			return fmt.Errorf("group %d member %s: %w", groupID, ToHex(commitment), ErrAlreadyExists)
		}
		delete(g.index, key(commitment))
	}

	slot := uint32(len(g.slots))
	newSlots := append(slices.Clone(g.slots), new(big.Int).Set(commitment))
	root, err := ComputeRoot(newSlots)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("group %d: recompute root: %w", groupID, err)
	}

	g.slots = newSlots
	g.index[key(commitment)] = slot
	g.root = root
	memberCount := uint32(len(g.slots))
	e.mu.Unlock()

	event := events.New(events.MemberAdded)
	event.GroupID = groupID
	event.Commitment = ToHex(commitment)
	event.MemberCount = memberCount
	e.emit(event)
	return nil
}

// RemoveMember deletes a commitment from the group via swap-with-last: the
// final slot's occupant moves into the vacated slot, the tail is dropped
// and the root is recomputed. Slot indices are therefore reused over time.
func (e *Engine) RemoveMember(caller *big.Int, groupID uint64, commitment *big.Int) error {
	if commitment == nil {
		return fmt.Errorf("group %d: commitment must be non-zero", groupID)
	}

	e.mu.Lock()
	g, ok := e.groups[groupID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("group %d: %w", groupID, ErrNotFound)
	}
	if err := e.authorize(caller, g); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("group %d: %w", groupID, err)
	}

	idx, hit := g.index[key(commitment)]
	// The index is a hint; the slot contents are the authority.
	if !hit || int(idx) >= len(g.slots) || g.slots[idx].Cmp(commitment) != 0 {
		e.mu.Unlock()
		return fmt.Errorf("group %d member %s: %w", groupID, ToHex(commitment), ErrNotFound)
	}

	newSlots := slices.Clone(g.slots)
	last := uint32(len(newSlots) - 1)
	var moved *big.Int
	if idx != last {
		moved = newSlots[last]
		newSlots[idx] = moved
	}
	newSlots = newSlots[:last]

	root, err := ComputeRoot(newSlots)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("group %d: recompute root: %w", groupID, err)
	}

	g.slots = newSlots
	delete(g.index, key(commitment))
	if moved != nil {
		g.index[key(moved)] = idx
	}
	g.root = root
	memberCount := uint32(len(g.slots))
	e.mu.Unlock()

	event := events.New(events.MemberRemoved)
	event.GroupID = groupID
	event.Commitment = ToHex(commitment)
	event.MemberCount = memberCount
	e.emit(event)
	return nil
}

// IsMember reports whether a commitment is an active member of the group.
// O(1): one index lookup plus a slot re-read to guard against stale index
// entries. Unknown groups are simply "not a member".
func (e *Engine) IsMember(groupID uint64, commitment *big.Int) bool {
	if commitment == nil {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	g, ok := e.groups[groupID]
	if !ok {
		return false
	}
	idx, hit := g.index[key(commitment)]
	if !hit || int(idx) >= len(g.slots) {
		return false
	}
	return g.slots[idx].Cmp(commitment) == 0
}

// Members returns the dense member list in slot order.
func (e *Engine) Members(groupID uint64) []*big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	g, ok := e.groups[groupID]
	if !ok {
		return nil
	}
	out := make([]*big.Int, len(g.slots))
	for i, c := range g.slots {
		out[i] = new(big.Int).Set(c)
	}
	return out
}
