// internal/status/snapshot.go
package status

// Snapshot represents exactly what the report writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         Health `json:"health"`
	LastErrorCode  uint32 `json:"last_error_code"`
	SecondsInError uint16 `json:"seconds_in_error"`
	Outstanding    int    `json:"outstanding"`
}
