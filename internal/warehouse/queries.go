package warehouse

import (
	"fmt"

	"github.com/talerngpong/cloud-datawarehouse/internal/config"
)

// Statement order is significant throughout this file: drops run in
// reverse dependency order so foreign keys never dangle, creates establish
// referenced tables first, and inserts populate dimensions before the fact
// table.

const (
	stagingEventsTableCreate = `
    CREATE TABLE staging_events (
        artist        TEXT      NULL,
        auth          TEXT      NULL,
        firstName     TEXT      NULL,
        gender        TEXT      NULL,
        itemInSession INT       NULL,
        lastName      TEXT      NULL,
        length        NUMERIC   NULL,
        level         TEXT      NULL,
        location      TEXT      NULL,
        method        TEXT      NULL,
        page          TEXT      NULL,
        registration  NUMERIC   NULL,
        sessionId     TEXT      NULL DISTKEY,
        song          TEXT      NULL,
        status        INT       NULL,
        ts            TIMESTAMP NULL, -- from epochmillisecs
        userAgent     TEXT      NULL,
        userId        TEXT      NULL
    )`

	stagingSongsTableCreate = `
    CREATE TABLE staging_songs (
        num_songs        INT     NULL,
        artist_id        TEXT    NULL DISTKEY,
        artist_latitude  TEXT    NULL,
        artist_longitude TEXT    NULL,
        artist_location  TEXT    NULL,
        artist_name      TEXT    NULL,
        song_id          TEXT    NULL,
        title            TEXT    NULL,
        duration         NUMERIC NULL,
        year             INT     NULL
    )`

	songplayTableCreate = `
    CREATE TABLE songplays (
        songplay_id BIGINT    NOT NULL IDENTITY(1, 1),
        start_time  TIMESTAMP NOT NULL,
        user_id     TEXT      NULL,
        level       TEXT      NULL,
        song_id     TEXT      NULL,
        artist_id   TEXT      NULL,
        session_id  TEXT      NULL,
        location    TEXT      NULL,
        user_agent  TEXT      NULL,
        PRIMARY KEY (songplay_id),
        FOREIGN KEY (user_id)   REFERENCES users   (user_id),
        FOREIGN KEY (song_id)   REFERENCES songs   (song_id),
        FOREIGN KEY (artist_id) REFERENCES artists (artist_id)
    )`

	userTableCreate = `
    CREATE TABLE IF NOT EXISTS users (
        user_id    TEXT NOT NULL,
        first_name TEXT NULL,
        last_name  TEXT NULL,
        gender     TEXT NULL,
        level      TEXT NULL,
        PRIMARY KEY (user_id)
    )`

	songTableCreate = `
    CREATE TABLE IF NOT EXISTS songs (
        song_id   TEXT    NOT NULL,
        title     TEXT    NULL,
        artist_id TEXT    NOT NULL,
        year      INT     NULL,
        duration  NUMERIC NULL,
        PRIMARY KEY (song_id),
        FOREIGN KEY (artist_id) REFERENCES artists (artist_id)
    )`

	artistTableCreate = `
    CREATE TABLE IF NOT EXISTS artists (
        artist_id TEXT NOT NULL,
        name      TEXT,
        location  TEXT,
        latitude  TEXT,
        longitude TEXT,
        PRIMARY KEY (artist_id)
    )`

	timeTableCreate = `
    CREATE TABLE IF NOT EXISTS times (
        start_time TIMESTAMP NOT NULL,
        hour       INT,
        day        INT,
        week       INT,
        month      INT,
        year       INT,
        weekday    INT,
        PRIMARY KEY (start_time)
    )`

	songplayTableInsert = `
    INSERT INTO songplays (
        start_time,
        user_id,
        level,
        song_id,
        artist_id,
        session_id,
        location,
        user_agent
    )
    SELECT
        se.ts AS start_time,
        se.userId AS user_id,
        se.level,
        s.song_id,
        a.artist_id,
        se.sessionId AS session_id,
        se.location,
        se.userAgent as user_agent
    FROM staging_events se
    JOIN songs s
        ON (s.title = se.song AND s.duration = se.length)
    JOIN artists a
        ON a.name = se.artist`

	userTableInsert = `
    INSERT INTO users (
        user_id,
        first_name,
        last_name,
        gender,
        level
    )
    SELECT
        DISTINCT userId AS user_id,
        firstName AS first_name,
        lastName AS last_name,
        gender,
        level
    FROM staging_events
    WHERE COALESCE(userId, '') <> ''`

	songTableInsert = `
    INSERT INTO songs (
        song_id,
        title,
        artist_id,
        year,
        duration
    )
    SELECT
        DISTINCT song_id AS song_id,
        title,
        artist_id,
        year,
        duration
    FROM staging_songs
    WHERE COALESCE(song_id, '') <> ''`

	artistTableInsert = `
    INSERT INTO artists (
        artist_id,
        name,
        location,
        latitude,
        longitude
    )
    SELECT
        DISTINCT artist_id AS artist_id,
        artist_name AS name,
        artist_location AS location,
        artist_latitude AS latitude,
        artist_longitude AS longitude
    FROM staging_songs
    WHERE COALESCE(artist_id, '') <> ''`

	timeTableInsert = `
    INSERT INTO times (
        start_time,
        hour,
        day,
        week,
        month,
        year,
        weekday
    )
    SELECT
        DISTINCT ts AS start_time,
        extract(hour from ts) AS hour,
        extract(day from ts) AS day,
        extract(week from ts) AS week,
        extract(month from ts) AS month,
        extract(year from ts) AS year,
        extract(weekday from ts) AS weekday
    FROM staging_events
    WHERE ts IS NOT NULL`
)

// CreateTableStatements creates staging tables first, then dimensions,
// then the fact table referencing them.
var CreateTableStatements = []string{
	stagingEventsTableCreate,
	stagingSongsTableCreate,
	userTableCreate,
	artistTableCreate,
	timeTableCreate,
	songTableCreate,
	songplayTableCreate,
}

// DropTableStatements drops in reverse dependency order.
var DropTableStatements = []string{
	"DROP TABLE IF EXISTS songplays",
	"DROP TABLE IF EXISTS songs",
	"DROP TABLE IF EXISTS times",
	"DROP TABLE IF EXISTS artists",
	"DROP TABLE IF EXISTS users",
	"DROP TABLE IF EXISTS staging_songs",
	"DROP TABLE IF EXISTS staging_events",
}

// InsertTableStatements populates dimensions before the fact table.
var InsertTableStatements = []string{
	userTableInsert,
	artistTableInsert,
	timeTableInsert,
	songTableInsert,
	songplayTableInsert,
}

// BuildCopyStatements renders the two COPY statements loading the staging
// tables from the published manifests. The event data timestamps arrive
// as epoch milliseconds, converted during the COPY.
// Ref: https://docs.aws.amazon.com/redshift/latest/dg/copy-parameters-data-conversion.html#copy-timeformat
func BuildCopyStatements(cfg *config.Config, roleARN string) []string {
	stagingEventsCopy := fmt.Sprintf(`
    copy staging_events
    from 's3://%s/%s'
    credentials 'aws_iam_role=%s'
    format as json 's3://%s/%s'
    timeformat as 'epochmillisecs'
    region '%s'
    manifest;`,
		cfg.Manifest.BucketName,
		cfg.Manifest.EventDataKey,
		roleARN,
		cfg.DataSet.BucketName,
		cfg.DataSet.LogDataJSONPathKey,
		cfg.Region,
	)

	stagingSongsCopy := fmt.Sprintf(`
    copy staging_songs
    from 's3://%s/%s'
    credentials 'aws_iam_role=%s'
    format as json 'auto'
    region '%s'
    manifest;`,
		cfg.Manifest.BucketName,
		cfg.Manifest.SongDataKey,
		roleARN,
		cfg.Region,
	)

	return []string{stagingEventsCopy, stagingSongsCopy}
}
