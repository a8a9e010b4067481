package ecs

import "math"

// GetAliveAgents returns every agent whose Health component has
// IsDead == false (or who has no Health component yet, e.g. mid-spawn).
func (s *Store) GetAliveAgents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entities))
	for id, e := range s.entities {
		if !e.hasHealth || !e.health.IsDead {
			out = append(out, id)
		}
	}
	return out
}

// GetAgentsInCombat is a cached scan of the combat index; the cache is
// invalidated by any write to a Combat component (see SetCombat).
func (s *Store) GetAgentsInCombat() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.combatCacheValid {
		return append([]string(nil), s.combatCache...)
	}
	var out []string
	for id, e := range s.entities {
		if e.hasCombat && e.combat.IsInCombat {
			out = append(out, id)
		}
	}
	s.combatCache = out
	s.combatCacheValid = true
	return append([]string(nil), out...)
}

// GetAgentsMoving is the symmetric cached query over Movement components.
func (s *Store) GetAgentsMoving() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.movingCacheValid {
		return append([]string(nil), s.movingCache...)
	}
	var out []string
	for id, e := range s.entities {
		if e.hasMovement && e.movement.IsMoving {
			out = append(out, id)
		}
	}
	s.movingCache = out
	s.movingCacheValid = true
	return append([]string(nil), out...)
}

// GetAgentsWithLowNeeds returns every agent whose named need is strictly
// below threshold.
func (s *Store) GetAgentsWithLowNeeds(kind string, threshold float64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, e := range s.entities {
		if !e.hasNeeds {
			continue
		}
		v, ok := e.needs.Get(kind)
		if ok && v < threshold {
			out = append(out, id)
		}
	}
	return out
}

// GetAgentsInArea returns every agent with a Transform within radius r of
// (x, y). This is a plain O(N) scan over the Store; callers wanting
// sub-linear proximity queries should use the Spatial Index (C1) instead,
// which this query does not replace.
func (s *Store) GetAgentsInArea(x, y, r float64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r2 := r * r
	var out []string
	for id, e := range s.entities {
		if !e.hasTransform {
			continue
		}
		dx := e.transform.X - x
		dy := e.transform.Y - y
		if dx*dx+dy*dy <= r2 {
			out = append(out, id)
		}
	}
	return out
}

// GetAgentsInZone returns every agent whose Transform.ZoneID matches.
func (s *Store) GetAgentsInZone(zoneID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, e := range s.entities {
		if e.hasTransform && e.transform.ZoneID == zoneID {
			out = append(out, id)
		}
	}
	return out
}

// GetAgentsWithComponent returns every agent carrying kind.
func (s *Store) GetAgentsWithComponent(kind Kind) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, e := range s.entities {
		if hasKind(e, kind) {
			out = append(out, id)
		}
	}
	return out
}

func hasKind(e *entityRecord, kind Kind) bool {
	switch kind {
	case KindProfile:
		return e.hasProfile
	case KindHealth:
		return e.hasHealth
	case KindNeeds:
		return e.hasNeeds
	case KindTransform:
		return e.hasTransform
	case KindMovement:
		return e.hasMovement
	case KindInventory:
		return e.hasInventory
	case KindCombat:
		return e.hasCombat
	case KindRole:
		return e.hasRole
	case KindSocial:
		return e.hasSocial
	case KindAI:
		return e.hasAI
	case KindEquipment:
		return e.hasEquipment
	case KindFavor:
		return e.hasFavor
	default:
		return false
	}
}

// Distance is a small shared helper used by several systems (movement
// arrival checks, combat range checks) to avoid reimporting math.Hypot
// call sites everywhere.
func Distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}
