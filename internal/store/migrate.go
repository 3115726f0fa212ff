package store

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		policy_type TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		hunger REAL NOT NULL,
		energy REAL NOT NULL,
		health REAL NOT NULL,
		balance REAL NOT NULL,
		state TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		personality TEXT NOT NULL DEFAULT '',
		spawn_index INTEGER NOT NULL,
		sleep_until INTEGER NOT NULL DEFAULT 0,
		died_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS resource_spawns (
		id TEXT PRIMARY KEY,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		kind TEXT NOT NULL,
		current_amount INTEGER NOT NULL,
		max_amount INTEGER NOT NULL,
		regen_rate INTEGER NOT NULL,
		biome TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS shelters (
		id TEXT PRIMARY KEY,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		can_sleep INTEGER NOT NULL DEFAULT 1,
		owner_agent TEXT
	);

	CREATE TABLE IF NOT EXISTS inventories (
		agent_id TEXT NOT NULL,
		item_type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		PRIMARY KEY (agent_id, item_type)
	);

	CREATE TABLE IF NOT EXISTS world_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		current_tick INTEGER NOT NULL,
		is_paused INTEGER NOT NULL,
		global_event_version INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		version INTEGER PRIMARY KEY,
		tick INTEGER NOT NULL,
		type TEXT NOT NULL,
		agent_id TEXT,
		payload TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS external_agents (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		api_key_hash TEXT NOT NULL,
		endpoint TEXT NOT NULL DEFAULT '',
		owner_email TEXT NOT NULL DEFAULT '',
		rate_limit_per_tick INTEGER NOT NULL DEFAULT 1,
		last_seen_at TIMESTAMP,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS experiments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS experiment_variants (
		id TEXT PRIMARY KEY,
		experiment_id TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		config_overrides TEXT NOT NULL DEFAULT '{}',
		agent_configs TEXT NOT NULL DEFAULT '[]',
		world_seed INTEGER NOT NULL,
		duration_ticks INTEGER NOT NULL,
		start_tick INTEGER,
		end_tick INTEGER,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS experiment_snapshots (
		id TEXT PRIMARY KEY,
		variant_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		snapshot TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_memories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		kind TEXT NOT NULL,
		content TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_knowledge (
		agent_id TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		info_type TEXT NOT NULL,
		sentiment REAL NOT NULL DEFAULT 0,
		discovery_type TEXT NOT NULL,
		referred_by TEXT,
		referral_depth INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (agent_id, subject_id, info_type)
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_events_agent ON events(agent_id);
	CREATE INDEX IF NOT EXISTS idx_agents_state ON agents(state);
	CREATE INDEX IF NOT EXISTS idx_spawns_pos ON resource_spawns(x, y);
	CREATE INDEX IF NOT EXISTS idx_memories_agent ON agent_memories(agent_id);
	CREATE INDEX IF NOT EXISTS idx_variants_experiment ON experiment_variants(experiment_id);
	`
	_, err := s.conn.Exec(schema)
	return err
}
