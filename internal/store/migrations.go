package store

// migrations is an ordered list of schema statements; index+1 is the
// migration's version number, tracked in schema_migrations. The stored
// version decides which migrations run; the separate check for an absent
// `runners` table only reports a first run in the log.
var migrations = []string{
	`CREATE TABLE schema_migrations (version INTEGER NOT NULL)`,

	`CREATE TABLE participants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL COLLATE NOCASE UNIQUE,
		pronouns TEXT,
		location TEXT,
		discord_id TEXT,
		photo BLOB,
		is_host INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE runners (
		participant_id INTEGER PRIMARY KEY REFERENCES participants(id) ON DELETE CASCADE,
		stream_handle TEXT,
		telemetry_handle TEXT,
		cached_playlist_url TEXT,
		volume_percent INTEGER NOT NULL DEFAULT 100
	)`,

	`CREATE TABLE nicknames (
		text TEXT NOT NULL COLLATE NOCASE UNIQUE,
		runner_id INTEGER NOT NULL REFERENCES runners(participant_id) ON DELETE CASCADE
	)`,

	`CREATE TABLE events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL COLLATE NOCASE UNIQUE,
		tournament TEXT,
		external_race_id TEXT,
		timer_start INTEGER,
		timer_end INTEGER,
		event_start INTEGER,
		preferred_layouts TEXT NOT NULL DEFAULT '[]',
		is_relay INTEGER NOT NULL DEFAULT 0,
		is_marathon INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE event_runners (
		event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		runner_id INTEGER NOT NULL REFERENCES runners(participant_id) ON DELETE CASCADE,
		result_kind TEXT NOT NULL DEFAULT '',
		result BLOB,
		PRIMARY KEY (event_id, runner_id)
	)`,

	`CREATE TABLE runs (
		runner_id INTEGER PRIMARY KEY REFERENCES runners(participant_id) ON DELETE CASCADE,
		pb REAL,
		sob REAL,
		best_possible REAL,
		delta REAL,
		started_at INTEGER,
		current_comparison TEXT,
		current_split_name TEXT,
		current_split_index INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE splits (
		runner_id INTEGER NOT NULL REFERENCES runs(runner_id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		pb_split_time REAL,
		split_time REAL,
		PRIMARY KEY (runner_id, position)
	)`,

	`CREATE TABLE layouts (
		name TEXT PRIMARY KEY COLLATE NOCASE,
		runner_count INTEGER NOT NULL,
		is_default INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE streams (
		event_id INTEGER PRIMARY KEY REFERENCES events(id) ON DELETE CASCADE,
		host_name TEXT NOT NULL UNIQUE,
		active_commentators TEXT NOT NULL DEFAULT '',
		ignored_commentators TEXT NOT NULL DEFAULT '',
		requested_layout TEXT,
		audible_runner INTEGER
	)`,

	`CREATE TABLE stream_runners (
		event_id INTEGER NOT NULL REFERENCES streams(event_id) ON DELETE CASCADE,
		slot INTEGER NOT NULL,
		runner_id INTEGER NOT NULL REFERENCES runners(participant_id) ON DELETE CASCADE,
		PRIMARY KEY (event_id, slot)
	)`,

	`CREATE TABLE custom_fields (
		key TEXT PRIMARY KEY,
		value TEXT
	)`,
}
