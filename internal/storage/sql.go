package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      run_id,
                      start_time,
                      device_id,
                      config)
VALUES (?, CURRENT_TIMESTAMP, ?, ?)`

	insertSignalSQL = `
INSERT INTO signals (session_id,
                     device_id,
                     time,
                     duration_us,
                     frequency,
                     bandwidth,
                     min_dbw,
                     max_dbw,
                     avg_dbw,
                     std_db,
                     noise_dbw,
                     snr_db)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertMatchSQL = `
INSERT INTO matches (session_id,
                     time,
                     duration_us,
                     frequency,
                     member_count)
VALUES (?, ?, ?, ?, ?)`

	insertMatchMemberSQL = `
INSERT INTO match_members (match_id,
                           device_id,
                           time,
                           duration_us,
                           frequency,
                           snr_db)
VALUES (?, ?, ?, ?, ?, ?)`

	selectSessionsSQL = `
SELECT
    id,
    run_id,
    start_time,
    device_id,
    config
FROM sessions`

	selectSignalsSQL = `
SELECT
    id,
    session_id,
    device_id,
    time,
    duration_us,
    frequency,
    bandwidth,
    min_dbw,
    max_dbw,
    avg_dbw,
    std_db,
    noise_dbw,
    snr_db
FROM signals`
)

//go:embed schema.sql
var schemaSQL string
