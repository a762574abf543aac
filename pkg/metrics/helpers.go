package metrics

// The helpers below are safe to call before Init, so packages exercised in
// isolation by tests need no metrics setup.

// IncEngineEvent counts one consumed engine event by type.
func IncEngineEvent(eventType string) {
	if EngineEvents != nil {
		EngineEvents.WithLabelValues(eventType).Inc()
	}
}

// IncTranscriptLine counts one recorded transcript line.
func IncTranscriptLine() {
	if TranscriptLines != nil {
		TranscriptLines.Inc()
	}
}

// IncToolInvocation counts one tool dispatch by outcome.
func IncToolInvocation(tool, outcome string) {
	if ToolInvocations != nil {
		ToolInvocations.WithLabelValues(tool, outcome).Inc()
	}
}

// IncNotificationFailure counts one failed outbound notification.
func IncNotificationFailure(channel string) {
	if NotificationFailures != nil {
		NotificationFailures.WithLabelValues(channel).Inc()
	}
}

// IncTranscriptFlush counts one end-of-call flush attempt by outcome.
func IncTranscriptFlush(outcome string) {
	if TranscriptFlushes != nil {
		TranscriptFlushes.WithLabelValues(outcome).Inc()
	}
}

// IncEngineConnectFailure counts one engine connection failure.
func IncEngineConnectFailure() {
	if EngineConnectFailures != nil {
		EngineConnectFailures.Inc()
	}
}

// SessionStarted records a session entering the streaming state.
func SessionStarted() {
	if ActiveSessions != nil {
		ActiveSessions.Inc()
	}
}

// SessionStopped records a streaming session leaving that state.
func SessionStopped() {
	if ActiveSessions != nil {
		ActiveSessions.Dec()
	}
}

// RecordSessionOutcome records a session reaching a terminal state.
func RecordSessionOutcome(state string, durationSeconds float64) {
	if SessionsTotal != nil {
		SessionsTotal.WithLabelValues(state).Inc()
	}
	if SessionDuration != nil {
		SessionDuration.Observe(durationSeconds)
	}
}
