package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/mo"
)

// UUIDToPgtype converts uuid.UUID to pgtype.UUID
func UUIDToPgtype(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// PgtypeToUUID converts pgtype.UUID to uuid.UUID
func PgtypeToUUID(id pgtype.UUID) uuid.UUID {
	return id.Bytes
}

// UUIDsToPgtype converts []uuid.UUID to []pgtype.UUID
func UUIDsToPgtype(ids []uuid.UUID) []pgtype.UUID {
	result := make([]pgtype.UUID, len(ids))
	for i, id := range ids {
		result[i] = UUIDToPgtype(id)
	}
	return result
}

// UUIDOptionToPgtype converts mo.Option[uuid.UUID] to pgtype.UUID
func UUIDOptionToPgtype(o mo.Option[uuid.UUID]) pgtype.UUID {
	id, ok := o.Get()
	if !ok {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

// StringOptionToPgtext converts mo.Option[string] to pgtype.Text
func StringOptionToPgtext(o mo.Option[string]) pgtype.Text {
	s, ok := o.Get()
	if !ok {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// PgtextToStringOption converts pgtype.Text to mo.Option[string]
func PgtextToStringOption(t pgtype.Text) mo.Option[string] {
	if !t.Valid {
		return mo.None[string]()
	}
	return mo.Some(t.String)
}

// IntOptionToPgInt4 converts mo.Option[int] to pgtype.Int4
func IntOptionToPgInt4(o mo.Option[int]) pgtype.Int4 {
	i, ok := o.Get()
	if !ok {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(i), Valid: true}
}

// PgInt4ToIntOption converts pgtype.Int4 to mo.Option[int]
func PgInt4ToIntOption(i pgtype.Int4) mo.Option[int] {
	if !i.Valid {
		return mo.None[int]()
	}
	return mo.Some(int(i.Int32))
}

// TimeToPgtype converts time.Time to pgtype.Timestamptz
func TimeToPgtype(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// PgtypeToTime converts pgtype.Timestamptz to time.Time
func PgtypeToTime(t pgtype.Timestamptz) time.Time {
	return t.Time
}

// PgtypeToTimeOption converts pgtype.Timestamptz to mo.Option[time.Time]
func PgtypeToTimeOption(t pgtype.Timestamptz) mo.Option[time.Time] {
	if !t.Valid {
		return mo.None[time.Time]()
	}
	return mo.Some(t.Time)
}
