package taskname

const (
	// Payout tasks
	PayoutProcess = "payout:process"
)
