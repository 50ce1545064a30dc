package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RewardRange is the inclusive XP reward window for a difficulty.
type RewardRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// Contains reports whether xp lies within the range.
func (r RewardRange) Contains(xp int64) bool {
	return xp >= r.Min && xp <= r.Max
}

// rewardRanges is the single authoritative reward schedule.
var rewardRanges = map[Difficulty]RewardRange{
	DifficultyBeginner:     {Min: 10, Max: 100},
	DifficultyIntermediate: {Min: 50, Max: 250},
	DifficultyAdvanced:     {Min: 100, Max: 500},
}

// RewardRangeFor returns the reward window for d.
func RewardRangeFor(d Difficulty) (RewardRange, bool) {
	r, ok := rewardRanges[d]
	return r, ok
}

var validate = validator.New()

// CreateUserParams is the input for registering a user.
type CreateUserParams struct {
	Username string `json:"username" validate:"required,min=2,max=32,alphanumunicode"`
}

// Validate checks the parameters.
func (p *CreateUserParams) Validate() error {
	p.Username = strings.TrimSpace(p.Username)
	return structError(validate.Struct(p))
}

// CreateProjectParams is the input for creating a project.
type CreateProjectParams struct {
	Title           string     `json:"title" validate:"required,min=3,max=120"`
	Description     string     `json:"description" validate:"max=4000"`
	Difficulty      Difficulty `json:"difficulty" validate:"required,oneof=beginner intermediate advanced"`
	CreatorID       string     `json:"creator_id" validate:"required"`
	MaxParticipants int        `json:"max_participants" validate:"gte=2,lte=50"`
	XPReward        int64      `json:"xp_reward" validate:"gt=0"`
	Tags            []string   `json:"tags" validate:"max=20,dive,required,max=40"`
	Skills          []string   `json:"skills" validate:"max=20,dive,required,max=40"`
}

// Validate normalizes list fields and checks every constraint, including the
// reward window for the chosen difficulty.
func (p *CreateProjectParams) Validate() error {
	p.Title = strings.TrimSpace(p.Title)
	p.Tags = normalizeList(p.Tags)
	p.Skills = normalizeList(p.Skills)
	if err := structError(validate.Struct(p)); err != nil {
		return err
	}
	r, _ := RewardRangeFor(p.Difficulty)
	if !r.Contains(p.XPReward) {
		return fmt.Errorf("%w: xp_reward %d outside %s range [%d, %d]",
			ErrInvalid, p.XPReward, p.Difficulty, r.Min, r.Max)
	}
	return nil
}

// normalizeList trims, lowercases and de-duplicates list items, dropping empties.
func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func structError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(parts, "; "))
	}
	return fmt.Errorf("%w: %v", ErrInvalid, err)
}
