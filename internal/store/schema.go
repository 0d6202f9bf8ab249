package store

// Schema v1 - curation tables, SQLite flavour.
// Surrogate ids of sequence, taxonomy, record and otu_cluster are
// allocated by the application; rel_id and otu_id are engine-assigned.
const sqliteSchemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sequence (
  seq_id INTEGER PRIMARY KEY,
  sequence TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS taxonomy (
  tax_id INTEGER PRIMARY KEY,
  tax_version TEXT NOT NULL DEFAULT 'NA',
  tax_string TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS record (
  gg_id INTEGER PRIMARY KEY,
  ncbi_acc_w_ver TEXT NOT NULL UNIQUE,
  ncbi_gi INTEGER,
  db_name TEXT,
  gold_id TEXT,
  decision TEXT NOT NULL CHECK (decision IN ('clone', 'isolate', 'named_isolate', 'undetermined')),
  prokmsaname TEXT,
  isolation_source TEXT,
  clone TEXT,
  organism TEXT,
  strain TEXT,
  specific_host TEXT,
  authors TEXT,
  title TEXT,
  journal TEXT,
  pubmed INTEGER,
  submit_date TEXT,
  country TEXT,
  ncbi_tax_id INTEGER REFERENCES taxonomy(tax_id),
  silva_tax_id INTEGER REFERENCES taxonomy(tax_id),
  greengenes_tax_id INTEGER REFERENCES taxonomy(tax_id),
  hugenholtz_tax_id INTEGER REFERENCES taxonomy(tax_id),
  non_acgt_percent REAL,
  perc_ident_to_invariant_core REAL,
  small_gap_intrusions REAL,
  unaligned_seq_id INTEGER REFERENCES sequence(seq_id),
  aligned_seq_id INTEGER REFERENCES sequence(seq_id),
  pynast_aligned_seq_id INTEGER REFERENCES sequence(seq_id)
);

CREATE TABLE IF NOT EXISTS gg_release (
  rel_id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  gg_id INTEGER NOT NULL REFERENCES record(gg_id)
);

CREATE TABLE IF NOT EXISTS otu_cluster (
  cluster_id INTEGER PRIMARY KEY,
  rep_id INTEGER NOT NULL REFERENCES record(gg_id),
  rel_id INTEGER NOT NULL REFERENCES gg_release(rel_id),
  similarity REAL NOT NULL,
  method VARCHAR(16) NOT NULL
);

CREATE TABLE IF NOT EXISTS otu (
  otu_id INTEGER PRIMARY KEY AUTOINCREMENT,
  cluster_id INTEGER NOT NULL REFERENCES otu_cluster(cluster_id),
  gg_id INTEGER NOT NULL REFERENCES record(gg_id),
  UNIQUE (cluster_id, gg_id)
);
`

// Schema v1 - curation tables, Postgres flavour.
const postgresSchemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sequence (
  seq_id BIGINT PRIMARY KEY,
  sequence TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS taxonomy (
  tax_id BIGINT PRIMARY KEY,
  tax_version TEXT NOT NULL DEFAULT 'NA',
  tax_string TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS record (
  gg_id BIGINT PRIMARY KEY,
  ncbi_acc_w_ver TEXT NOT NULL UNIQUE,
  ncbi_gi BIGINT,
  db_name TEXT,
  gold_id TEXT,
  decision TEXT NOT NULL CHECK (decision IN ('clone', 'isolate', 'named_isolate', 'undetermined')),
  prokmsaname TEXT,
  isolation_source TEXT,
  clone TEXT,
  organism TEXT,
  strain TEXT,
  specific_host TEXT,
  authors TEXT,
  title TEXT,
  journal TEXT,
  pubmed BIGINT,
  submit_date TEXT,
  country TEXT,
  ncbi_tax_id BIGINT REFERENCES taxonomy(tax_id),
  silva_tax_id BIGINT REFERENCES taxonomy(tax_id),
  greengenes_tax_id BIGINT REFERENCES taxonomy(tax_id),
  hugenholtz_tax_id BIGINT REFERENCES taxonomy(tax_id),
  non_acgt_percent DOUBLE PRECISION,
  perc_ident_to_invariant_core DOUBLE PRECISION,
  small_gap_intrusions DOUBLE PRECISION,
  unaligned_seq_id BIGINT REFERENCES sequence(seq_id),
  aligned_seq_id BIGINT REFERENCES sequence(seq_id),
  pynast_aligned_seq_id BIGINT REFERENCES sequence(seq_id)
);

CREATE TABLE IF NOT EXISTS gg_release (
  rel_id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  gg_id BIGINT NOT NULL REFERENCES record(gg_id)
);

CREATE TABLE IF NOT EXISTS otu_cluster (
  cluster_id BIGINT PRIMARY KEY,
  rep_id BIGINT NOT NULL REFERENCES record(gg_id),
  rel_id BIGINT NOT NULL REFERENCES gg_release(rel_id),
  similarity DOUBLE PRECISION NOT NULL,
  method VARCHAR(16) NOT NULL
);

CREATE TABLE IF NOT EXISTS otu (
  otu_id BIGSERIAL PRIMARY KEY,
  cluster_id BIGINT NOT NULL REFERENCES otu_cluster(cluster_id),
  gg_id BIGINT NOT NULL REFERENCES record(gg_id),
  UNIQUE (cluster_id, gg_id)
);
`

// Schema v2 - lookup indexes (same statements on both engines)
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_gg_release_name_gg_id ON gg_release(name, gg_id);
CREATE INDEX IF NOT EXISTS idx_gg_release_gg_id ON gg_release(gg_id);
CREATE INDEX IF NOT EXISTS idx_otu_gg_id ON otu(gg_id);
CREATE INDEX IF NOT EXISTS idx_otu_cluster_rep_id ON otu_cluster(rep_id);
CREATE INDEX IF NOT EXISTS idx_record_decision ON record(decision);
`
