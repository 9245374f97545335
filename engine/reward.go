package engine

// RewardKind selects which kind of card a critical reward favours.
type RewardKind string

const (
	RewardAttack  RewardKind = "attack"
	RewardDefense RewardKind = "defense"
)

// critBonus is the flat stat bonus of the fallback reward card.
const critBonus = 3

var rewardRarityOrder = []Rarity{RarityLegendary, RarityEpic, RarityRare, RarityUncommon}

func (k RewardKind) matches(c Card) bool {
	if k == RewardAttack {
		return c.Type == CardItem && (c.Subtype == SubtypeWeapon || c.ATK > 0)
	}
	return (c.Type == CardItem || c.Type == CardApparel) && (c.Subtype == SubtypeArmor || c.DEF > 0)
}

// GenerateCriticalReward pulls the best matching card out of the actor's draw
// pile, searching rarities from LEGENDARY down to UNCOMMON. When nothing
// matches it fabricates a "Critical Bonus" consumable worth +3 to the relevant
// stat for the round. The returned card is always flagged IsCriticalReward.
func GenerateCriticalReward(d Dice, kind RewardKind, actor *Combatant) Card {
	for _, rarity := range rewardRarityOrder {
		var candidates []int
		for i, c := range actor.DrawPile {
			if c.Rarity == rarity && kind.matches(c) {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		i := candidates[d.Intn(len(candidates))]
		reward := actor.DrawPile[i]
		actor.DrawPile = append(actor.DrawPile[:i], actor.DrawPile[i+1:]...)
		reward.ID = "crit-reward"
		reward.IsCriticalReward = true
		return reward
	}

	bonus := Card{
		ID:               "crit-reward",
		Type:             CardItem,
		Subtype:          SubtypeConsumable,
		Name:             "Critical Bonus",
		Rarity:           RarityRare,
		IsCriticalReward: true,
	}
	if kind == RewardAttack {
		bonus.ATK = critBonus
		bonus.Effect = "+3 ATK this round"
	} else {
		bonus.DEF = critBonus
		bonus.Effect = "+3 DEF this round"
	}
	return bonus
}
