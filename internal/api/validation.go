package api

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/djlord-it/eoflow/internal/domain"
)

func validateExecute(req ExecuteRequest) error {
	if len(req.Inputs) == 0 {
		return domain.InvalidParameter("inputs is required")
	}
	if !domain.IsJSONObject(req.Inputs) {
		return domain.InvalidParameter("inputs must be a JSON object")
	}
	return nil
}

// tokenMatches compares in constant time. Hashing first keeps the comparison
// length-independent.
func tokenMatches(got, want string) bool {
	g := sha256.Sum256([]byte(got))
	w := sha256.Sum256([]byte(want))
	return subtle.ConstantTimeCompare(g[:], w[:]) == 1
}
