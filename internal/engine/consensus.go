package engine

// ActionTally counts proposals sharing the same action.
type ActionTally struct {
	Action Action
	Votes  int
}

// TallyProposals groups proposals by (kind, target) in first-seen order.
func TallyProposals(proposals []Proposal) []ActionTally {
	index := make(map[Action]int)
	var tallies []ActionTally
	for _, p := range proposals {
		i, ok := index[p.Action]
		if !ok {
			i = len(tallies)
			index[p.Action] = i
			tallies = append(tallies, ActionTally{Action: p.Action})
		}
		tallies[i].Votes++
	}
	return tallies
}

// ResolveConsensus turns the mafia's individual proposals into one team action.
// The largest group wins; a tie is broken uniformly at random among the tied
// groups that actually do something.
func ResolveConsensus(proposals []Proposal, rng Random) Action {
	tallies := TallyProposals(proposals)
	if len(tallies) == 0 {
		return NoAction()
	}

	best := 0
	for _, t := range tallies {
		if t.Votes > best {
			best = t.Votes
		}
	}

	var top []Action
	for _, t := range tallies {
		if t.Votes == best {
			top = append(top, t.Action)
		}
	}
	if len(top) == 1 {
		return top[0]
	}

	var candidates []Action
	for _, a := range top {
		if !a.IsNone() {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return NoAction()
	}
	return candidates[rng.Intn(len(candidates))]
}
