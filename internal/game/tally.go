package game

import "math/rand"

// TallyResult is the outcome of counting one round's votes.
type TallyResult struct {
	// Winner is the winning choice, or "" when no votes were cast.
	Winner string
	// Counts maps each voted choice to its vote count.
	Counts map[string]int
	// Tied lists every choice that shared the max count. Len > 1 means
	// the winner was drawn at random among them.
	Tied []string
}

// Tally counts votes per distinct choice and picks the winner.
// Abstentions simply do not appear in votes. Ties are broken by a
// uniform random draw over the tied choices; this is the game's
// fairness policy, not an error.
func Tally(votes map[string]string, rng *rand.Rand) TallyResult {
	counts := make(map[string]int)
	for _, choice := range votes {
		counts[choice]++
	}

	maxVotes := 0
	var tied []string
	for choice, n := range counts {
		switch {
		case n > maxVotes:
			maxVotes = n
			tied = []string{choice}
		case n == maxVotes:
			tied = append(tied, choice)
		}
	}

	result := TallyResult{Counts: counts, Tied: tied}
	if len(tied) > 0 {
		result.Winner = tied[rng.Intn(len(tied))]
	}
	return result
}
