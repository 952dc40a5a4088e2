package db

// SchemaSQL contains the catalog schema initialization SQL.
const SchemaSQL = `
	CREATE TABLE IF NOT EXISTS medication (
		id           TEXT PRIMARY KEY,
		slug_id      TEXT UNIQUE,
		fhir_code    TEXT,
		name         TEXT,
		manufacturer TEXT,
		strength     TEXT,
		form         TEXT,
		route        TEXT,
		last_updated TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_medication_code ON medication(fhir_code);

	CREATE TABLE IF NOT EXISTS medication_knowledge (
		medication_id     TEXT PRIMARY KEY REFERENCES medication(id) ON DELETE CASCADE,
		indications       TEXT,
		contraindications TEXT,
		side_effects      TEXT,
		interactions      TEXT,
		warnings          TEXT
	);
`
