package auth

// Scopes accepted by the tracker API.
const (
	ScopeTrackerRead  = "tracker:read"
	ScopeTrackerWrite = "tracker:write"
)
