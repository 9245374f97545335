package engine

import "testing"

func TestApplyStatus(t *testing.T) {
	var c Combatant
	if c.ApplyStatus("petrified", "test") {
		t.Error("unknown status should be rejected")
	}
	if !c.ApplyStatus(StatusPoisoned, "Venom") {
		t.Fatal("poisoned should apply")
	}
	c.TickStatus()
	if c.Effects[0].TurnsRemaining != 2 {
		t.Fatalf("TurnsRemaining = %d, want 2", c.Effects[0].TurnsRemaining)
	}
	c.ApplyStatus(StatusPoisoned, "Venom")
	if len(c.Effects) != 1 || c.Effects[0].TurnsRemaining != 3 {
		t.Errorf("reapplying should refresh, got %+v", c.Effects)
	}
}

func TestTickStatusExpires(t *testing.T) {
	var c Combatant
	c.ApplyStatus(StatusPoisoned, "")
	c.ApplyStatus(StatusShielded, "")
	for range 3 {
		c.TickStatus()
	}
	if c.HasStatus(StatusPoisoned) {
		t.Error("poison should expire after 3 ticks")
	}
	if !c.HasStatus(StatusShielded) {
		t.Error("shielded lasts until hit, not turns")
	}
}

func TestTurnStartEffects(t *testing.T) {
	c := Combatant{HP: 10, MaxHP: 20}
	c.ApplyStatus(StatusPoisoned, "")
	c.ApplyStatus(StatusRegenerating, "")
	c.ApplyStatus(StatusBurning, "")

	msgs := c.ApplyTurnStartEffects()
	if len(msgs) != 3 {
		t.Errorf("got %d messages, want 3: %v", len(msgs), msgs)
	}
	if c.HP != 7 {
		t.Errorf("hp = %d, want 7 (10 - 2 + 2 - 3)", c.HP)
	}
}

func TestStatusModifiers(t *testing.T) {
	var c Combatant
	c.ApplyStatus(StatusEnraged, "")
	c.ApplyStatus(StatusInspired, "")
	c.ApplyStatus(StatusShielded, "")
	got := c.StatusModifiers()
	want := StatusMods{ATK: 3, DEF: 1, Roll: 2}
	if got != want {
		t.Errorf("StatusModifiers = %+v, want %+v", got, want)
	}
}

func TestCure(t *testing.T) {
	var c Combatant
	c.ApplyStatus(StatusPoisoned, "")
	c.ApplyStatus(StatusStunned, "")
	c.ApplyStatus(StatusFortified, "")
	c.Cure()
	if len(c.Effects) != 1 || c.Effects[0].ID != StatusFortified {
		t.Errorf("after cure: %+v, want only fortified", c.Effects)
	}
}
