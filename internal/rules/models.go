package rules

// WinRules are CEL expressions deciding when a game is over.
// Mafia is checked first; both must evaluate to bool.
type WinRules struct {
	Mafia string `yaml:"mafia"`
	Town  string `yaml:"town"`
}

// Manifest is the top-level structure of a rules YAML file.
type Manifest struct {
	Win WinRules `yaml:"win"`
}

// DefaultManifest: mafia wins at parity, town wins once no mafia is left.
func DefaultManifest() *Manifest {
	return &Manifest{
		Win: WinRules{
			Mafia: "mafia >= others",
			Town:  "mafia == 0",
		},
	}
}
