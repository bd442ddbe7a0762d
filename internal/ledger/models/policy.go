package models

// Policy holds the ledger's tunable constants.
type Policy struct {
	// DefaultReputation is the score every new profile starts with.
	DefaultReputation uint64
	// ValidatorMinReputation gates register_validator.
	ValidatorMinReputation uint64
	// ValidationReward is credited to a skill owner when the skill becomes validated.
	ValidationReward uint64
	// ValidatorReward is credited to a validator per endorsement.
	ValidatorReward uint64
	Categories      *CategoryTable
}

// DefaultPolicy returns the stock policy. A freshly registered user meets
// the validator threshold.
func DefaultPolicy() Policy {
	return Policy{
		DefaultReputation:      100,
		ValidatorMinReputation: 100,
		ValidationReward:       10,
		ValidatorReward:        0,
		Categories:             DefaultCategories(),
	}
}
