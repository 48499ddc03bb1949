package enums

// TokenState is the outcome of validating a delivery token at scan time.
// Expired takes precedence over Used when both hold.
type TokenState string

const (
	TokenStateValid   TokenState = "valid"
	TokenStateExpired TokenState = "expired"
	TokenStateUsed    TokenState = "used"
)

// String implements fmt.Stringer.
func (s TokenState) String() string {
	return string(s)
}
