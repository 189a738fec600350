package approval

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoTradableInstruments = errors.New("market has no tradable instruments")
	ErrUnknownOutcome        = errors.New("outcome label not found on market")
	ErrOutcomeUnresolvable   = errors.New("cannot resolve outcome; supply an explicit token id")
)

// ResolveOutcome maps an optional human outcome label to a concrete CLOB
// token id, given a market's parallel label/token lists. Tie-break order:
// an explicit label match beats the yes/no heuristic, which beats
// defaulting to the first instrument. Callers with an explicit token id
// bypass this entirely.
func ResolveOutcome(labels, tokenIDs []string, want string) (tokenID, label string, err error) {
	if len(tokenIDs) == 0 {
		return "", "", ErrNoTradableInstruments
	}

	norm := strings.ToLower(strings.TrimSpace(want))

	if norm != "" && len(labels) == len(tokenIDs) {
		for i, l := range labels {
			if strings.ToLower(strings.TrimSpace(l)) == norm {
				return tokenIDs[i], l, nil
			}
		}
		return "", "", fmt.Errorf("no outcome %q among %v: %w", want, labels, ErrUnknownOutcome)
	}

	// Binary-market fallback: "yes" is conventionally the first token,
	// "no" the second.
	switch norm {
	case "yes":
		return tokenIDs[0], labelAt(labels, 0), nil
	case "no":
		if len(tokenIDs) > 1 {
			return tokenIDs[1], labelAt(labels, 1), nil
		}
	case "":
		return tokenIDs[0], labelAt(labels, 0), nil
	}

	return "", "", fmt.Errorf("outcome %q: %w", want, ErrOutcomeUnresolvable)
}

func labelAt(labels []string, i int) string {
	if i < len(labels) {
		return labels[i]
	}
	return ""
}
