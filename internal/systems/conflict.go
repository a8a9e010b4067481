package systems

import (
	"context"
	"math/rand"
	"time"

	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/ports"
	"github.com/crossroads-sim/worldengine/internal/tuning"
)

// negotiationCard is one open conflict awaiting resolution between a pair
// of agents.
type negotiationCard struct {
	a, b      string
	opened    int64
	hitsInWindow int
	open      bool // set once a hit crosses the severe/repeat threshold
}

// ConflictResolutionSystem implements the supplemental ConflictResolution
// of SPEC_FULL.md §4.8.12: opens a negotiation card when combat:hit
// payloads cross the severe-damage threshold (or repeat within a short
// window between the same pair), then resolves it by truce, apologize, or
// continue — each adjusting the pair's social affinity through
// ports.SocialPort. Grounded on the teacher's deterministic crime/
// deterrence pipeline (_examples/tobyjaguar-mini-world/internal/engine/
// crime.go's processCrime guardStrength/deterrence gating), generalized
// from theft-specific law enforcement to a general post-combat
// negotiation step that any severe hit can trigger.
type ConflictResolutionSystem struct {
	bus    *eventbus.Bus
	social ports.SocialPort
	now    func() int64
	rng    *rand.Rand

	cards map[string]*negotiationCard // key: "a|b" sorted
}

// NewConflictResolutionSystem returns a ConflictResolutionSystem subscribed
// to combat:hit on bus.
func NewConflictResolutionSystem(bus *eventbus.Bus, social ports.SocialPort, now func() int64, seed int64) *ConflictResolutionSystem {
	c := &ConflictResolutionSystem{
		bus: bus, social: social, now: now, rng: rand.New(rand.NewSource(seed)),
		cards: make(map[string]*negotiationCard),
	}
	bus.On(eventbus.CombatHit, func(ev eventbus.Event) {
		p, ok := ev.Payload.(eventbus.CombatHitPayload)
		if !ok {
			return
		}
		c.observeHit(p.AttackerID, p.TargetID, p.Damage)
	})
	return c
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (c *ConflictResolutionSystem) observeHit(attacker, target string, damage float64) {
	key := pairKey(attacker, target)
	card, exists := c.cards[key]
	if !exists {
		card = &negotiationCard{a: attacker, b: target, opened: c.now()}
		c.cards[key] = card
	}
	card.hitsInWindow++

	if damage >= tuning.SevereHitThreshold || card.hitsInWindow >= 3 {
		card.open = true
		c.bus.Emit(eventbus.ConflictOpened, eventbus.ConflictOpenedPayload{A: attacker, B: target, Damage: damage}, c.now())
	}
}

// Update implements scheduler.UpdateFunc: resolves every open card once
// per tick, then clears every tracked pair (open or not), so hit counts
// only accumulate between two Updates. A simple deterministic weighted
// roll between truce/apologize/continue stands in for player/AI
// arbitration; truce and apologize repair affinity, continue further
// damages it.
func (c *ConflictResolutionSystem) Update(ctx context.Context, dt time.Duration) error {
	for key, card := range c.cards {
		if card.open {
			c.resolve(card)
		}
		delete(c.cards, key)
	}
	return nil
}

func (c *ConflictResolutionSystem) resolve(card *negotiationCard) {
	roll := c.rng.Float64()
	var resolution string
	var delta float64
	switch {
	case roll < 0.4:
		resolution, delta = "truce", 10
	case roll < 0.7:
		resolution, delta = "apologize", 5
	default:
		resolution, delta = "continue", -10
	}
	if c.social != nil {
		c.social.AddEdge(card.a, card.b, delta)
	}
	c.bus.Emit(eventbus.ConflictResolved, eventbus.ConflictResolvedPayload{
		A: card.a, B: card.b, Resolution: resolution,
	}, c.now())
}
