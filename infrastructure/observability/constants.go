package observability

// Metric name prefixes
const (
	MetricPrefix = "coino"
)

// Metric names
const (
	// Betting metrics
	BetsPlacedTotal   = MetricPrefix + ".bets.placed_total"
	BetsRejectedTotal = MetricPrefix + ".bets.rejected_total"

	// Round metrics
	RoundsOpenedTotal  = MetricPrefix + ".rounds.opened_total"
	RoundsSettledTotal = MetricPrefix + ".rounds.settled_total"

	// Settlement metrics
	SettlementRetriesTotal = MetricPrefix + ".settlement.retries_total"
	SettlementDuration     = MetricPrefix + ".settlement.duration"

	// NATS metrics
	NATSMessagesReceivedTotal  = MetricPrefix + ".nats.messages_received_total"
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	LabelScope     = "scope"
	LabelReason    = "reason"
	LabelOutcome   = "outcome"
	LabelEventType = "event_type"
	LabelOperation = "operation"
)

// Scope kinds used as label values so private room IDs do not blow up cardinality
const (
	ScopeKindPublic = "public"
	ScopeKindRoom   = "room"
)
