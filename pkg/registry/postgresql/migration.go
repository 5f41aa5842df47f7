package postgresql

// migrations returns the registry schema, keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS registry_entries (
				id              UUID PRIMARY KEY,
				filename        TEXT NOT NULL UNIQUE,
				local_version   TEXT NOT NULL DEFAULT '',
				n8n_workflow_id TEXT,
				is_active       BOOLEAN NOT NULL DEFAULT FALSE,
				import_status   TEXT NOT NULL DEFAULT 'pending',
				last_import_at  TIMESTAMP WITH TIME ZONE,
				last_error      TEXT NOT NULL DEFAULT '',
				created_at      TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at      TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_registry_entries_status
				ON registry_entries (import_status);

			CREATE TABLE IF NOT EXISTS registry_settings (
				id            INTEGER PRIMARY KEY DEFAULT 1 CHECK (id = 1),
				n8n_base_url  TEXT NOT NULL DEFAULT '',
				n8n_api_key   TEXT NOT NULL DEFAULT '',
				setup_complete BOOLEAN NOT NULL DEFAULT FALSE,
				updated_at    TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
		`,
	}
}
