package database

// Delivery is one attempt to deliver the daily message.
type Delivery struct {
	ID             int64
	RunDate        string // YYYY-MM-DD in the race time zone
	Stage          int
	Source         string // "live" or "fallback"
	FallbackReason *string
	Channel        string
	Delivered      bool
	Error          *string
	Trigger        string // "scheduled", "manual" or "cli"
	CreatedAt      *string
}

// Stats contains aggregate delivery statistics.
type Stats struct {
	Deliveries    int
	Delivered     int
	Failed        int
	Fallbacks     int
	LastDelivered *string
}
