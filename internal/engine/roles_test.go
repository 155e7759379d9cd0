package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func seats(n int) []Seat {
	out := make([]Seat, n)
	for i := range out {
		out[i] = Seat(i + 1)
	}
	return out
}

func TestDealRolesCounts(t *testing.T) {
	rng := NewRand(7)
	for _, m := range []int{4, 5, 6} {
		for n := m; n <= 20; n++ {
			roles := DealRoles(seats(n), m, rng)
			count := map[Role]int{}
			for _, r := range roles {
				count[r]++
			}

			wantCop := 0
			if n-n/m-1 > 2 {
				wantCop = 1
			}
			assert.Len(t, roles, n)
			assert.Equal(t, n/m, count[RoleMafia], "n=%d m=%d", n, m)
			assert.Equal(t, 1, count[RoleDoctor], "n=%d m=%d", n, m)
			assert.Equal(t, wantCop, count[RoleCop], "n=%d m=%d", n, m)
			assert.Equal(t, n-n/m-1-wantCop, count[RoleCitizen], "n=%d m=%d", n, m)
			assert.Zero(t, count[RoleUnassigned])
		}
	}
}

func TestDealRolesFiveSeats(t *testing.T) {
	mafia, doctor, cop := RoleCounts(5, 4)
	assert.Equal(t, 1, mafia)
	assert.Equal(t, 1, doctor)
	assert.Equal(t, 1, cop)

	mafia, doctor, cop = RoleCounts(4, 4)
	assert.Equal(t, 1, mafia)
	assert.Equal(t, 1, doctor)
	assert.Equal(t, 0, cop, "only two seats remain after mafia and doctor")
}

func TestDealRolesClampsMinimum(t *testing.T) {
	mafia, _, _ := RoleCounts(8, 2)
	assert.Equal(t, 2, mafia)
}

func TestDealRolesIsRandomized(t *testing.T) {
	rng := NewRand(42)
	mafiaSeats := map[Seat]bool{}
	for i := 0; i < 200; i++ {
		for seat, r := range DealRoles(seats(8), 4, rng) {
			if r == RoleMafia {
				mafiaSeats[seat] = true
			}
		}
	}
	assert.Len(t, mafiaSeats, 8, "every seat should be dealt mafia at some point")
}

func TestDealRolesReproducible(t *testing.T) {
	a := DealRoles(seats(9), 4, NewRand(3))
	b := DealRoles(seats(9), 4, NewRand(3))
	assert.Equal(t, a, b)
}
