// Package settings persists user preferences across restarts.
//
// Preferences are the user-adjustable parts of AppState: audio levels,
// climate set points, the DRL mode, the power chart time base and VFD
// brightness. They are stored as key/value rows in the user_settings table.
//
//	startup:   Repository.Load ──▶ Apply ──▶ Store (internal origin)
//	runtime:   Store ──▶ Persister (marks dirty on user changes)
//	                          │
//	           Persister.Run ─┴─▶ Repository.Save (every interval, if dirty)
//
// Applied settings carry the internal origin, so restoring them never
// sends commands to the head unit.
//
// # Key Types
//
//   - Settings: the persisted preferences
//   - Repository / SQLiteRepository: load and save
//   - Persister: watches the store and saves when the user changed something
package settings
