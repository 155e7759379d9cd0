package engine

// MinimumPlayers is the smallest table a game can be dealt for.
const MinimumPlayers = 4

// RoleCounts returns how many of each special role a table of n receives.
// One mafia per minPlayers members, one doctor, and a cop once the
// remaining pool is larger than two.
func RoleCounts(n, minPlayers int) (mafia, doctor, cop int) {
	if minPlayers < MinimumPlayers {
		minPlayers = MinimumPlayers
	}
	if n <= 0 {
		return 0, 0, 0
	}
	mafia = n / minPlayers
	doctor = 1
	if n-mafia-doctor > 2 {
		cop = 1
	}
	return mafia, doctor, cop
}

// DealRoles assigns a role to every seat. Counts are fixed by RoleCounts;
// which seat gets which role is a uniform random permutation drawn from rng.
func DealRoles(seats []Seat, minPlayers int, rng Random) map[Seat]Role {
	mafia, doctor, cop := RoleCounts(len(seats), minPlayers)

	deck := make([]Role, 0, len(seats))
	for i := 0; i < mafia; i++ {
		deck = append(deck, RoleMafia)
	}
	for i := 0; i < doctor; i++ {
		deck = append(deck, RoleDoctor)
	}
	for i := 0; i < cop; i++ {
		deck = append(deck, RoleCop)
	}
	for len(deck) < len(seats) {
		deck = append(deck, RoleCitizen)
	}
	if len(deck) > len(seats) {
		deck = deck[:len(seats)]
	}

	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	roles := make(map[Seat]Role, len(seats))
	for i, seat := range seats {
		roles[seat] = deck[i]
	}
	return roles
}
