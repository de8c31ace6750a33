package loadgen

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// PercentageMultiplier converts ratios to percentages.
const PercentageMultiplier = 100
