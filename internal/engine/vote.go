package engine

// Plurality returns the option with the strictly greatest count.
// Ties for the maximum and empty input yield no decision.
func Plurality[K comparable](votes []K) (K, bool) {
	var zero K
	if len(votes) == 0 {
		return zero, false
	}

	counts := make(map[K]int, len(votes))
	best := 0
	for _, v := range votes {
		counts[v]++
		if counts[v] > best {
			best = counts[v]
		}
	}

	var winner K
	leaders := 0
	for k, c := range counts {
		if c == best {
			winner = k
			leaders++
		}
	}
	if leaders != 1 {
		return zero, false
	}
	return winner, true
}

// ResolveLynch picks the nominee of a public vote, if any.
func ResolveLynch(ballots []Ballot) (Seat, bool) {
	targets := make([]Seat, 0, len(ballots))
	for _, b := range ballots {
		targets = append(targets, b.Target)
	}
	return Plurality(targets)
}

// ResolveApproval reports whether the approval vote confirms the elimination.
// Only a strict majority of yes ballots does.
func ResolveApproval(ballots []ApprovalBallot) bool {
	values := make([]bool, 0, len(ballots))
	for _, b := range ballots {
		values = append(values, b.Approve)
	}
	approved, ok := Plurality(values)
	return ok && approved
}
