package domain

// LoanSettings holds runtime loan-program settings (from the settings table
// or env-derived defaults). Read at call time, never cached per process.
type LoanSettings struct {
	AllowGuestMode          bool
	LoanDurationDays        int
	MaximumLoanDurationDays int
}
