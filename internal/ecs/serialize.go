package ecs

// AgentBundle is the exported, language-neutral view of one agent's full
// component set, used by ExportAll/ImportAll (the Store's half of the
// Snapshot Serializer, C11) and by the bulk GetComponents/UpdateComponents
// helpers SPEC_FULL.md §4.4 calls for.
type AgentBundle struct {
	ID        string
	Profile   *Profile
	Health    *Health
	Needs     *Needs
	Transform *Transform
	Movement  *Movement
	Inventory *Inventory
	Combat    *Combat
	Role      *Role
	Social    *Social
	AI        *AI
	Equipment *EquipmentSlots
	Favor     *Favor
}

// ExportAll returns a deterministic (agent-id-ordered) snapshot of every
// agent and every component it carries. Values are deep copies; mutating
// the result cannot affect the live Store.
func (s *Store) ExportAll() []AgentBundle {
	s.mu.RLock()
	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sortStrings(ids)

	out := make([]AgentBundle, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.exportOne(id))
	}
	return out
}

func (s *Store) exportOne(id string) AgentBundle {
	s.mu.RLock()
	e, ok := s.entities[id]
	if !ok {
		s.mu.RUnlock()
		return AgentBundle{ID: id}
	}
	b := AgentBundle{ID: id}
	if e.hasProfile {
		p := e.profile.Clone()
		b.Profile = &p
	}
	if e.hasHealth {
		h := e.health
		b.Health = &h
	}
	if e.hasNeeds {
		n := e.needs.Clone()
		b.Needs = &n
	}
	if e.hasTransform {
		t := e.transform
		b.Transform = &t
	}
	if e.hasMovement {
		m := e.movement.Clone()
		b.Movement = &m
	}
	if e.hasInventory {
		i := e.inventory.Clone()
		b.Inventory = &i
	}
	if e.hasCombat {
		c := e.combat.Clone()
		b.Combat = &c
	}
	if e.hasRole {
		r := e.role
		b.Role = &r
	}
	if e.hasSocial {
		so := e.social.Clone()
		b.Social = &so
	}
	if e.hasAI {
		a := e.ai
		b.AI = &a
	}
	if e.hasEquipment {
		eq := e.equipment
		b.Equipment = &eq
	}
	if e.hasFavor {
		f := e.favor.Clone()
		b.Favor = &f
	}
	s.mu.RUnlock()
	return b
}

// ImportAll clears the live Store and re-registers every bundle. Callers
// restoring a full simulation snapshot should route through Lifecycle's
// import path instead (so task-queue/spatial-index/other subsystem state
// rebuilds consistently) rather than calling this directly; the Store-level
// operation only guarantees component data, not cross-subsystem state.
func (s *Store) ImportAll(bundles []AgentBundle) {
	s.mu.Lock()
	s.entities = make(map[string]*entityRecord, len(bundles))
	s.dirty = make(map[string]map[Kind]bool)
	s.invalidateCaches()
	s.mu.Unlock()

	for _, b := range bundles {
		s.RegisterAgent(b.ID)
		if b.Profile != nil {
			_ = s.SetProfile(b.ID, *b.Profile)
		}
		if b.Health != nil {
			_ = s.SetHealth(b.ID, *b.Health)
		}
		if b.Needs != nil {
			_ = s.SetNeeds(b.ID, *b.Needs)
		}
		if b.Transform != nil {
			_ = s.SetTransform(b.ID, *b.Transform)
		}
		if b.Movement != nil {
			_ = s.SetMovement(b.ID, *b.Movement)
		}
		if b.Inventory != nil {
			_ = s.SetInventory(b.ID, *b.Inventory)
		}
		if b.Combat != nil {
			_ = s.SetCombat(b.ID, *b.Combat)
		}
		if b.Role != nil {
			_ = s.SetRole(b.ID, *b.Role)
		}
		if b.Social != nil {
			_ = s.SetSocial(b.ID, *b.Social)
		}
		if b.AI != nil {
			_ = s.SetAI(b.ID, *b.AI)
		}
		if b.Equipment != nil {
			_ = s.SetEquipment(b.ID, *b.Equipment)
		}
		if b.Favor != nil {
			_ = s.SetFavor(b.ID, *b.Favor)
		}
	}
}

// GetComponents is the bulk accessor SPEC_FULL.md §4.4 names: returns the
// requested component kinds for id as a bundle with only those fields set.
func (s *Store) GetComponents(id string, kinds []Kind) AgentBundle {
	b := AgentBundle{ID: id}
	for _, k := range kinds {
		switch k {
		case KindProfile:
			if p, ok := s.GetProfile(id); ok {
				b.Profile = &p
			}
		case KindHealth:
			if h, ok := s.GetHealth(id); ok {
				b.Health = &h
			}
		case KindNeeds:
			if n, ok := s.GetNeeds(id); ok {
				b.Needs = &n
			}
		case KindTransform:
			if t, ok := s.GetTransform(id); ok {
				b.Transform = &t
			}
		case KindMovement:
			if m, ok := s.GetMovement(id); ok {
				b.Movement = &m
			}
		case KindInventory:
			if i, ok := s.GetInventory(id); ok {
				b.Inventory = &i
			}
		case KindCombat:
			if c, ok := s.GetCombat(id); ok {
				b.Combat = &c
			}
		case KindRole:
			if r, ok := s.GetRole(id); ok {
				b.Role = &r
			}
		case KindSocial:
			if so, ok := s.GetSocial(id); ok {
				b.Social = &so
			}
		case KindAI:
			if a, ok := s.GetAI(id); ok {
				b.AI = &a
			}
		case KindEquipment:
			if eq, ok := s.GetEquipment(id); ok {
				b.Equipment = &eq
			}
		case KindFavor:
			if f, ok := s.GetFavor(id); ok {
				b.Favor = &f
			}
		}
	}
	return b
}

// UpdateComponents applies every non-nil field of partial to id in one call.
func (s *Store) UpdateComponents(id string, partial AgentBundle) error {
	if partial.Profile != nil {
		if err := s.SetProfile(id, *partial.Profile); err != nil {
			return err
		}
	}
	if partial.Health != nil {
		if err := s.SetHealth(id, *partial.Health); err != nil {
			return err
		}
	}
	if partial.Needs != nil {
		if err := s.SetNeeds(id, *partial.Needs); err != nil {
			return err
		}
	}
	if partial.Transform != nil {
		if err := s.SetTransform(id, *partial.Transform); err != nil {
			return err
		}
	}
	if partial.Movement != nil {
		if err := s.SetMovement(id, *partial.Movement); err != nil {
			return err
		}
	}
	if partial.Inventory != nil {
		if err := s.SetInventory(id, *partial.Inventory); err != nil {
			return err
		}
	}
	if partial.Combat != nil {
		if err := s.SetCombat(id, *partial.Combat); err != nil {
			return err
		}
	}
	if partial.Role != nil {
		if err := s.SetRole(id, *partial.Role); err != nil {
			return err
		}
	}
	if partial.Social != nil {
		if err := s.SetSocial(id, *partial.Social); err != nil {
			return err
		}
	}
	if partial.AI != nil {
		if err := s.SetAI(id, *partial.AI); err != nil {
			return err
		}
	}
	if partial.Equipment != nil {
		if err := s.SetEquipment(id, *partial.Equipment); err != nil {
			return err
		}
	}
	if partial.Favor != nil {
		if err := s.SetFavor(id, *partial.Favor); err != nil {
			return err
		}
	}
	return nil
}

// sortStrings is a tiny in-place insertion sort (ascending); the exported
// agent-id lists here are small enough (a few thousand at most) that it
// stands in for the "sort" package at this one call site.
func sortStrings(ids []string) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
