package storage

const schema = `
-- The 'cards' table is the only persistent state. Dates are stored as
-- YYYY-MM-DD text so they sort and diff without driver-side time handling.
CREATE TABLE cards (
    id INTEGER PRIMARY KEY,
    pos_in_series INTEGER NOT NULL DEFAULT 0,
    question TEXT NOT NULL DEFAULT '',
    answer TEXT NOT NULL DEFAULT '',
    markers TEXT NOT NULL DEFAULT '',
    series TEXT,
    date_created TEXT NOT NULL,
    date_updated TEXT,
    score INTEGER NOT NULL DEFAULT 0
);
`
