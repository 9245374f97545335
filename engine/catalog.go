package engine

// Creature is a catalog template for threat encounters.
type Creature struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Type     string   `json:"type" yaml:"type"`
	ATK      int      `json:"atk" yaml:"atk"`
	DEF      int      `json:"def" yaml:"def"`
	HP       int      `json:"hp" yaml:"hp"`
	Icon     string   `json:"imageIcon,omitempty" yaml:"imageIcon,omitempty"`
	Behavior string   `json:"behavior,omitempty" yaml:"behavior,omitempty"`
	Loot     []string `json:"loot,omitempty" yaml:"loot,omitempty"`
}

// Scenario effects.
const (
	ScenarioNoThreat = "no_threat"
	ScenarioThreat   = "threat"
)

// Scenario bonus kinds for no-threat cards.
const (
	BonusLoot   = "loot"
	BonusHeal   = "heal"
	BonusEnergy = "energy"
)

// ScenarioCard is one weighted entry of the round-end scenario table.
type ScenarioCard struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Effect      string  `json:"effect" yaml:"effect"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Icon        string  `json:"icon,omitempty" yaml:"icon,omitempty"`
	CardColor   string  `json:"cardColor,omitempty" yaml:"cardColor,omitempty"`
	Weight      float64 `json:"weight" yaml:"weight"`
	ThreatBonus int     `json:"threatBonus,omitempty" yaml:"threatBonus,omitempty"`
	Bonus       string  `json:"bonus,omitempty" yaml:"bonus,omitempty"`
	BonusAmount int     `json:"bonusAmount,omitempty" yaml:"bonusAmount,omitempty"`
}

// Catalog is the creature and scenario data a match draws from.
type Catalog struct {
	Creatures []Creature     `json:"threatCreatures" yaml:"threatCreatures"`
	Scenarios []ScenarioCard `json:"scenarioCards" yaml:"scenarioCards"`
	Supplies  []Card         `json:"supplies,omitempty" yaml:"supplies,omitempty"` // consumables handed out by loot scenarios
}

// DefaultCreatures returns the built-in creature table, ordered by strength.
func DefaultCreatures() []Creature {
	return []Creature{
		{ID: "weak_beast", Name: "Feral Beast", Type: "animal", ATK: 2, DEF: 1, HP: 8, Icon: "pets",
			Behavior: "Attacks lowest HP target", Loot: []string{"Beast Hide"}},
		{ID: "scout", Name: "Scout", Type: "npc", ATK: 3, DEF: 1, HP: 10, Icon: "face",
			Behavior: "Flanks weakest defender", Loot: []string{"Scout's Blade"}},
		{ID: "venomous", Name: "Venomous Creature", Type: "animal", ATK: 2, DEF: 2, HP: 12, Icon: "bug_report",
			Behavior: "Poison on hit (2 turns)", Loot: []string{"Venom Sac"}},
		{ID: "thief", Name: "Thief", Type: "npc", ATK: 4, DEF: 2, HP: 15, Icon: "person_alert",
			Behavior: "Steals item on crit", Loot: []string{"Stolen Goods"}},
	}
}

// DefaultScenarios returns the built-in scenario table.
func DefaultScenarios() []ScenarioCard {
	return []ScenarioCard{
		{ID: "peaceful_respite", Name: "Peaceful Respite", Effect: ScenarioNoThreat,
			Description: "The area is calm.", Icon: "park", CardColor: "#43A047", Weight: 40},
		{ID: "ambush", Name: "Ambush!", Effect: ScenarioThreat,
			Description: "Enemies emerge from hiding!", Icon: "visibility_off", CardColor: "#C62828", Weight: 15},
	}
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() Catalog {
	return Catalog{Creatures: DefaultCreatures(), Scenarios: DefaultScenarios()}
}

// WithDefaults fills empty sections from the built-in tables.
func (c Catalog) WithDefaults() Catalog {
	if len(c.Creatures) == 0 {
		c.Creatures = DefaultCreatures()
	}
	if len(c.Scenarios) == 0 {
		c.Scenarios = DefaultScenarios()
	}
	return c
}
