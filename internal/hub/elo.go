package hub

import "math"

// eloK is the fixed K-factor mandated by §6's Elo constants (spec
// rejects the source's inconsistent +30/-20 fixed-delta variant).
const eloK = 32

// eloReference is the rating-difference divisor in the expected-score
// formula.
const eloReference = 400

// expected returns the probability rate is favored to win against opp,
// per the standard logistic Elo formula.
func expected(rate, opp int) float64 {
	return 1 / (1 + math.Pow(10, float64(opp-rate)/eloReference))
}

// eloDelta returns the zero-sum rating change applied to the winner
// (the loser's is its negation) for a consistent result between the
// two given rates.
func eloDelta(winnerRate, loserRate int) int {
	return int(math.Round(eloK * (1 - expected(winnerRate, loserRate))))
}
