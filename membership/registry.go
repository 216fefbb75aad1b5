package membership

import (
	"fmt"
	"math/big"

	"github.com/limitlxx/kirito-sdk-sub003/events"
)

// CreateGroup registers a new group with the given admin. A group id is
// claimed exactly once; creating it again fails with ErrAlreadyExists and
// leaves state untouched.
func (e *Engine) CreateGroup(groupID uint64, admin *big.Int) error {
	if admin == nil || admin.Sign() == 0 {
		return fmt.Errorf("group %d: admin must be a non-zero identity", groupID)
	}

	e.mu.Lock()
	if g, ok := e.groups[groupID]; ok && g.admin != nil && g.admin.Sign() != 0 {
		e.mu.Unlock()
		return fmt.Errorf("group %d: %w", groupID, ErrAlreadyExists)
	}
	e.groups[groupID] = &group{
		admin: new(big.Int).Set(admin),
		index: make(map[string]uint32),
		root:  big.NewInt(0),
	}
	e.mu.Unlock()

	event := events.New(events.GroupCreated)
	event.GroupID = groupID
	event.Admin = ToHex(admin)
	e.emit(event)
	return nil
}

// SetGroupAdmin transfers group administration. Only the current admin or
// the engine's global owner may do so.
func (e *Engine) SetGroupAdmin(caller *big.Int, groupID uint64, newAdmin *big.Int) error {
	if newAdmin == nil || newAdmin.Sign() == 0 {
		return fmt.Errorf("group %d: new admin must be a non-zero identity", groupID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.groups[groupID]
	if !ok {
		return fmt.Errorf("group %d: %w", groupID, ErrNotFound)
	}
	if err := e.authorize(caller, g); err != nil {
		return fmt.Errorf("group %d: %w", groupID, err)
	}
	g.admin = new(big.Int).Set(newAdmin)
	return nil
}

// GroupAdmin returns the admin identity of a group, or nil for a group that
// was never created. Reads never fail; lookups of unknown groups degrade to
// sentinel values so membership checks stay cheap for callers.
func (e *Engine) GroupAdmin(groupID uint64) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.groups[groupID]
	if !ok {
		return nil
	}
	return new(big.Int).Set(g.admin)
}

// GroupSize returns the current member count, 0 for unknown groups.
func (e *Engine) GroupSize(groupID uint64) uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.groups[groupID]
	if !ok {
		return 0
	}
	return uint32(len(g.slots))
}

// MerkleRoot returns the current membership root, zero for unknown or
// empty groups.
func (e *Engine) MerkleRoot(groupID uint64) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.groups[groupID]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(g.root)
}
