package observability

// EventEnvelope wraps a telemetry event payload.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// BuildHeaders assembles message headers for correlation.
func BuildHeaders(connID, traceID string) map[string]string {
	headers := map[string]string{}
	if connID != "" {
		headers["conn_id"] = connID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
