// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "math"

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Percent returns part/whole*100 rounded to two decimals, or 0 when whole is 0.
func Percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return Round2(float64(part) / float64(whole) * 100)
}

// RecomputeTally derives TotalVotesCast, TurnoutPercentage and each
// candidate's VotePercentage from the candidates' VoteCount.
func (e *Election) RecomputeTally() {
	total := 0
	for _, c := range e.Candidates {
		total += c.VoteCount
	}
	e.TotalVotesCast = total
	e.TurnoutPercentage = Percent(total, e.TotalVoters)
	for i := range e.Candidates {
		e.Candidates[i].VotePercentage = Percent(e.Candidates[i].VoteCount, total)
	}
}

// ApplyCounts replaces every candidate's VoteCount with counts[candidateID]
// (missing IDs count as zero) and recomputes the tally.
func (e *Election) ApplyCounts(counts map[string]int) {
	for i := range e.Candidates {
		e.Candidates[i].VoteCount = counts[e.Candidates[i].CandidateID]
	}
	e.RecomputeTally()
}

// SelectWinner picks the candidate with the strictly greatest VoteCount,
// first in ballot order on ties. tied reports whether another candidate
// shares the top count. ok is false when no votes were cast.
func (e Election) SelectWinner() (winner CandidateTally, tied bool, ok bool) {
	best := -1
	for _, c := range e.Candidates {
		switch {
		case c.VoteCount > best:
			best = c.VoteCount
			winner = c
			tied = false
		case c.VoteCount == best:
			tied = true
		}
	}
	if best <= 0 {
		return CandidateTally{}, false, false
	}
	return winner, tied, true
}
