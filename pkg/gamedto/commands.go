package gamedto

// Command type discriminators for client-emitted messages.
const (
	CommandSendMove      = "sendMove"
	CommandRequestPause  = "requestPause"
	CommandRequestResume = "requestResume"
	CommandRespondResume = "respondResume"
	CommandResign        = "resign"
	CommandReportFlag    = "reportFlag"
)

// MoveMetrics rides along with a proposed move for server-side bookkeeping.
type MoveMetrics struct {
	TimeSpentMs int64 `json:"time_spent_ms"`
}

// Command is the outbound envelope published to the realtime stream.
type Command struct {
	Type      string       `json:"type"`
	GameID    string       `json:"game_id"`
	From      string       `json:"from,omitempty"`
	To        string       `json:"to,omitempty"`
	Promotion string       `json:"promotion,omitempty"`
	Accept    *bool        `json:"accept,omitempty"`
	Color     string       `json:"color,omitempty"`
	Metrics   *MoveMetrics `json:"metrics,omitempty"`
}
