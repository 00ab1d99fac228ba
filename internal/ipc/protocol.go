package ipc

// Commands understood by the daemon.
const (
	CmdPing   = "ping"
	CmdStatus = "status"
	CmdStop   = "stop"
	CmdSync   = "sync" // poll the database now instead of at the next tick
)

// Request is a JSON message sent from client to server.
type Request struct {
	Command string            `json:"command"`
	Args    map[string]string `json:"args,omitempty"`
}

// Response is a JSON message sent from server to client.
type Response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// StatusData is returned by the "status" command.
type StatusData struct {
	Uptime          string `json:"uptime"`
	RunID           string `json:"run_id"`
	Branch          string `json:"branch"`
	Commit          string `json:"commit,omitempty"`
	MainBranch      string `json:"main_branch"`
	Bootstrapped    bool   `json:"bootstrapped"`
	TablesTracked   int    `json:"tables_tracked"`
	MigrationsCount int64  `json:"migrations_count"`
	VCSEventsCount  int64  `json:"vcs_events_count"`
	DBSizeBytes     int64  `json:"db_size_bytes"`
}
