package market

// Snapshot captures the market facts the broker needs at staging time:
// identifiers for display and allowlisting, plus the parallel outcome
// label / CLOB token id lists used to resolve a tradable instrument.
type Snapshot struct {
	ID              string
	Slug            string
	Question        string
	Active          bool
	AcceptingOrders bool
	OutcomeLabels   []string
	TokenIDs        []string
}

// Tradable reports whether the venue will accept orders on this market.
func (s *Snapshot) Tradable() bool {
	return s.Active && s.AcceptingOrders && len(s.TokenIDs) > 0
}
