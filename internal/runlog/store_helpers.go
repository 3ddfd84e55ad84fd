package runlog

import (
	"database/sql"
	"errors"
	"time"
)

const runColumns = "id, record_id, status, stage, error_message, warning_count, output_file, created_at, updated_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id           string
		recordID     string
		statusStr    string
		stage        sql.NullString
		errorMessage sql.NullString
		warningCount sql.NullInt64
		outputFile   sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&recordID,
		&statusStr,
		&stage,
		&errorMessage,
		&warningCount,
		&outputFile,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:           id,
		RecordID:     recordID,
		Status:       Status(statusStr),
		Stage:        stage.String,
		ErrorMessage: errorMessage.String,
		OutputFile:   outputFile.String,
	}
	if warningCount.Valid {
		run.WarningCount = int(warningCount.Int64)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		run.UpdatedAt = updated
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
