package ecs

import (
	"fmt"
	"sync"
)

// entityRecord is the authoritative per-agent bundle. A zero value for a
// component kind means "agent does not carry that component."
type entityRecord struct {
	hasProfile   bool
	profile      Profile
	hasHealth    bool
	health       Health
	hasNeeds     bool
	needs        Needs
	hasTransform bool
	transform    Transform
	hasMovement  bool
	movement     Movement
	hasInventory bool
	inventory    Inventory
	hasCombat    bool
	combat       Combat
	hasRole      bool
	role         Role
	hasSocial    bool
	social       Social
	hasAI        bool
	ai           AI
	hasEquipment bool
	equipment    EquipmentSlots
	hasFavor     bool
	favor        Favor
}

// Store is the Agent Store (C4): the central component repository. All
// mutation goes through its setters, which deep-clone the incoming value
// (the immutability contract in SPEC_FULL.md §4.4).
type Store struct {
	mu       sync.RWMutex
	entities map[string]*entityRecord

	dirty map[string]map[Kind]bool

	combatCacheValid bool
	combatCache      []string
	movingCacheValid bool
	movingCache      []string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		entities: make(map[string]*entityRecord),
		dirty:    make(map[string]map[Kind]bool),
	}
}

// ErrUnknownAgent is returned (wrapped) by operations on an unregistered
// agent id.
type ErrUnknownAgent struct{ ID string }

func (e *ErrUnknownAgent) Error() string { return fmt.Sprintf("ecs: unknown agent %q", e.ID) }

// RegisterAgent creates a new entity record with no components; callers
// then attach components through the typed setters (or UpdateComponents).
// Registering an id that already exists is a no-op.
func (s *Store) RegisterAgent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[id]; ok {
		return
	}
	s.entities[id] = &entityRecord{}
}

// RemoveAgent deletes the entity and all of its components.
func (s *Store) RemoveAgent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, id)
	delete(s.dirty, id)
	s.invalidateCaches()
}

// HasAgent reports whether id is registered.
func (s *Store) HasAgent(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entities[id]
	return ok
}

// GetAllAgentIDs returns every registered id, in no particular order.
func (s *Store) GetAllAgentIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	return ids
}

// GetAgentCount returns the number of registered agents.
func (s *Store) GetAgentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

func (s *Store) markDirty(id string, kind Kind) {
	m, ok := s.dirty[id]
	if !ok {
		m = make(map[Kind]bool)
		s.dirty[id] = m
	}
	m[kind] = true
}

// IsComponentDirty reports whether kind has been written for id since the
// last ClearDirty/ClearAllDirty.
func (s *Store) IsComponentDirty(id string, kind Kind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty[id][kind]
}

// ClearDirty clears the dirty flags for a single agent.
func (s *Store) ClearDirty(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dirty, id)
}

// ClearAllDirty clears dirty flags for every agent.
func (s *Store) ClearAllDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = make(map[string]map[Kind]bool)
}

func (s *Store) invalidateCaches() {
	s.combatCacheValid = false
	s.movingCacheValid = false
}

// --- Typed accessors -------------------------------------------------
//
// Each pair mirrors the spec's "getX/setX" shortcuts over the generic
// getComponent/setComponent contract. Set* deep-clones; Get* returns a
// defensive copy, so callers can never mutate committed state through a
// retained reference.

func (s *Store) GetProfile(id string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok || !e.hasProfile {
		return Profile{}, false
	}
	return e.profile.Clone(), true
}

func (s *Store) SetProfile(id string, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return &ErrUnknownAgent{ID: id}
	}
	e.hasProfile = true
	e.profile = p.Clone()
	s.markDirty(id, KindProfile)
	return nil
}

func (s *Store) GetHealth(id string) (Health, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok || !e.hasHealth {
		return Health{}, false
	}
	return e.health, true
}

func (s *Store) SetHealth(id string, h Health) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return &ErrUnknownAgent{ID: id}
	}
	e.hasHealth = true
	e.health = h
	s.markDirty(id, KindHealth)
	return nil
}

func (s *Store) GetNeeds(id string) (Needs, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok || !e.hasNeeds {
		return Needs{}, false
	}
	return e.needs.Clone(), true
}

func (s *Store) SetNeeds(id string, n Needs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return &ErrUnknownAgent{ID: id}
	}
	e.hasNeeds = true
	e.needs = n.Clone()
	s.markDirty(id, KindNeeds)
	return nil
}

func (s *Store) GetTransform(id string) (Transform, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok || !e.hasTransform {
		return Transform{}, false
	}
	return e.transform, true
}

func (s *Store) SetTransform(id string, t Transform) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return &ErrUnknownAgent{ID: id}
	}
	e.hasTransform = true
	e.transform = t
	s.markDirty(id, KindTransform)
	return nil
}

func (s *Store) GetMovement(id string) (Movement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok || !e.hasMovement {
		return Movement{}, false
	}
	return e.movement.Clone(), true
}

func (s *Store) SetMovement(id string, m Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return &ErrUnknownAgent{ID: id}
	}
	e.hasMovement = true
	e.movement = m.Clone()
	s.markDirty(id, KindMovement)
	s.invalidateCaches()
	return nil
}

func (s *Store) GetInventory(id string) (Inventory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok || !e.hasInventory {
		return Inventory{}, false
	}
	return e.inventory.Clone(), true
}

func (s *Store) SetInventory(id string, inv Inventory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return &ErrUnknownAgent{ID: id}
	}
	e.hasInventory = true
	e.inventory = inv.Clone()
	s.markDirty(id, KindInventory)
	return nil
}

func (s *Store) GetCombat(id string) (Combat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok || !e.hasCombat {
		return Combat{}, false
	}
	return e.combat.Clone(), true
}

func (s *Store) SetCombat(id string, c Combat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return &ErrUnknownAgent{ID: id}
	}
	e.hasCombat = true
	e.combat = c.Clone()
	s.markDirty(id, KindCombat)
	s.invalidateCaches()
	return nil
}

func (s *Store) GetRole(id string) (Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok || !e.hasRole {
		return Role{}, false
	}
	return e.role, true
}

func (s *Store) SetRole(id string, r Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return &ErrUnknownAgent{ID: id}
	}
	e.hasRole = true
	e.role = r
	s.markDirty(id, KindRole)
	return nil
}

func (s *Store) GetSocial(id string) (Social, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok || !e.hasSocial {
		return Social{}, false
	}
	return e.social.Clone(), true
}

func (s *Store) SetSocial(id string, soc Social) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return &ErrUnknownAgent{ID: id}
	}
	e.hasSocial = true
	e.social = soc.Clone()
	s.markDirty(id, KindSocial)
	return nil
}

func (s *Store) GetAI(id string) (AI, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok || !e.hasAI {
		return AI{}, false
	}
	return e.ai, true
}

func (s *Store) SetAI(id string, a AI) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return &ErrUnknownAgent{ID: id}
	}
	e.hasAI = true
	e.ai = a
	s.markDirty(id, KindAI)
	return nil
}

func (s *Store) GetEquipment(id string) (EquipmentSlots, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok || !e.hasEquipment {
		return EquipmentSlots{}, false
	}
	return e.equipment, true
}

func (s *Store) SetEquipment(id string, eq EquipmentSlots) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return &ErrUnknownAgent{ID: id}
	}
	e.hasEquipment = true
	e.equipment = eq
	s.markDirty(id, KindEquipment)
	return nil
}

func (s *Store) GetFavor(id string) (Favor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok || !e.hasFavor {
		return Favor{}, false
	}
	return e.favor.Clone(), true
}

func (s *Store) SetFavor(id string, f Favor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return &ErrUnknownAgent{ID: id}
	}
	e.hasFavor = true
	e.favor = f.Clone()
	s.markDirty(id, KindFavor)
	return nil
}
