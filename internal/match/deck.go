package match

import "github.com/jason-s-yu/skirmish/engine"

// starterCards is the draw pile every starter character receives.
func starterCards() []engine.Card {
	skill := func(name, mod string) engine.Card {
		return engine.Card{Type: engine.CardSkill, Name: name, Rarity: engine.RarityCommon, Modifier: mod}
	}
	consumable := func(name, effect string, r engine.Rarity) engine.Card {
		return engine.Card{Type: engine.CardItem, Subtype: engine.SubtypeConsumable, Name: name, Rarity: r, Effect: effect}
	}
	return []engine.Card{
		skill("Power Strike", "+2 to Attack rolls"),
		skill("Power Strike", "+2 to Attack rolls"),
		skill("Feint Step", "+1 to Attack rolls"),
		skill("Sprint", "+3 to Flee rolls"),
		skill("Silver Tongue", "+2 to Talk rolls"),
		consumable("Health Potion", "Restore 6 HP", engine.RarityCommon),
		consumable("Bandage", "Restore 4 HP", engine.RarityCommon),
		consumable("Energy Tonic", "Restore 4 Energy", engine.RarityCommon),
		consumable("Sharpening Stone", "+2 ATK this round", engine.RarityCommon),
		consumable("Antidote", "Cure poison", engine.RarityUncommon),
		{Type: engine.CardMagic, Name: "Fire Bolt", Rarity: engine.RarityUncommon, Effect: "Deal 3 damage and burn"},
		{Type: engine.CardItem, Subtype: engine.SubtypeWeapon, Name: "Hand Axe", Rarity: engine.RarityUncommon, ATK: 2, Slot: "Hand (1H)"},
		{Type: engine.CardApparel, Subtype: engine.SubtypeArmor, Name: "Iron Cap", Rarity: engine.RarityUncommon, DEF: 1, Slot: "Head"},
		{Type: engine.CardApparel, Subtype: engine.SubtypeArmor, Name: "Kite Shield", Rarity: engine.RarityRare, DEF: 2, Parry: 1, Slot: "Hand (1H)"},
		{Type: engine.CardTalk, Name: "Taunt", Rarity: engine.RarityCommon},
		{Type: engine.CardTalk, Name: "Parley", Rarity: engine.RarityCommon},
	}
}

// StarterCombatant builds a character with a shuffled starter deck, a short
// sword and padded armor. The hand is dealt when the first round starts.
func StarterCombatant(name string, stats engine.Stats, b engine.Balance, d engine.Dice) engine.Combatant {
	c := engine.NewCombatant(name, stats, b)
	c.DrawPile = shuffle(d, starterCards())
	c.Stack = []engine.Card{
		{Type: engine.CardItem, Subtype: engine.SubtypeWeapon, Name: "Short Sword", Rarity: engine.RarityCommon, ATK: 2, Slot: "Hand (1H)"},
		{Type: engine.CardApparel, Subtype: engine.SubtypeArmor, Name: "Padded Armor", Rarity: engine.RarityCommon, DEF: 1, Slot: "Body"},
	}
	return c
}

// shuffle is an in-place Fisher-Yates over d.
func shuffle(d engine.Dice, cards []engine.Card) []engine.Card {
	for i := len(cards) - 1; i > 0; i-- {
		j := d.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
	return cards
}
