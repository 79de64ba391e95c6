package catalog

// Schema contains the SQL statements to create the catalog database schema.
const Schema = `
-- Storage status: last-known snapshot per endpoint, one row each
CREATE TABLE IF NOT EXISTS storage_status (
    id             INTEGER PRIMARY KEY,
    storage_type   TEXT UNIQUE NOT NULL,
    mount_point    TEXT,
    is_available   BOOLEAN DEFAULT FALSE,
    capacity_bytes INTEGER DEFAULT 0,
    used_bytes     INTEGER DEFAULT 0,
    free_bytes     INTEGER DEFAULT 0,
    health_status  TEXT DEFAULT 'unknown',
    last_checked   DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Storage events: append-only failover/health log
CREATE TABLE IF NOT EXISTS storage_events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    event_type   TEXT NOT NULL,
    storage_type TEXT NOT NULL,
    message      TEXT,
    occurred_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Health checks: one row per diagnostic check per run
CREATE TABLE IF NOT EXISTS storage_health_checks (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    storage_type     TEXT NOT NULL,
    check_type       TEXT NOT NULL,
    status           TEXT NOT NULL,
    response_time_ms INTEGER,
    error_message    TEXT,
    checked_at       DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Alerts: created on failing checks, resolved by operators or cleanup
CREATE TABLE IF NOT EXISTS storage_alerts (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    storage_type TEXT NOT NULL,
    alert_type   TEXT NOT NULL,
    severity     TEXT NOT NULL,
    message      TEXT NOT NULL,
    resolved     BOOLEAN DEFAULT FALSE,
    created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
    resolved_at  DATETIME
);

-- Song catalog with the backup-related columns owned by the backup manager
CREATE TABLE IF NOT EXISTS songs (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    title            TEXT NOT NULL,
    artist           TEXT,
    filename         TEXT NOT NULL,
    filepath         TEXT UNIQUE NOT NULL,
    file_size        INTEGER DEFAULT 0,
    play_count       INTEGER DEFAULT 0,
    last_played      DATETIME,
    date_added       DATETIME DEFAULT CURRENT_TIMESTAMP,
    is_available     BOOLEAN DEFAULT TRUE,
    storage_location TEXT DEFAULT 'primary',
    fallback_path    TEXT,
    checksum         TEXT,
    is_backup_synced BOOLEAN DEFAULT FALSE,
    backup_date      DATETIME
);

-- Backup audit log: every backup outcome, success or failure
CREATE TABLE IF NOT EXISTS backup_sync_log (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    song_id          INTEGER NOT NULL,
    action           TEXT NOT NULL,
    source_path      TEXT,
    destination_path TEXT,
    file_size        INTEGER,
    checksum         TEXT,
    error_message    TEXT,
    logged_at        DATETIME DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (song_id) REFERENCES songs(id) ON DELETE CASCADE
);

-- Indexes for performance
CREATE INDEX IF NOT EXISTS idx_events_occurred ON storage_events(occurred_at);
CREATE INDEX IF NOT EXISTS idx_health_checks_storage ON storage_health_checks(storage_type, checked_at);
CREATE INDEX IF NOT EXISTS idx_alerts_resolved ON storage_alerts(resolved);
CREATE INDEX IF NOT EXISTS idx_songs_location ON songs(storage_location);
CREATE INDEX IF NOT EXISTS idx_songs_play_count ON songs(play_count);
CREATE INDEX IF NOT EXISTS idx_backup_log_song ON backup_sync_log(song_id);
`
