//go:generate go run go.uber.org/mock/mockgen -source=session.go -destination=../mocks/mock_session_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const sessionPrefix = "session:"

type ISessionRepository interface {
	Store(record SessionRecord) error
	List(limit int) ([]SessionRecord, error)
}

// SessionRecord is the journal entry of one connection.
// ClosedAt is nil while the session is still open.
type SessionRecord struct {
	ID       uuid.UUID
	Endpoint string
	OpenedAt time.Time
	ClosedAt *time.Time
	LinesIn  int
	LinesOut int
	Reason   string
}

type SessionRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewSessionRepository(db *badger.DB, log *slog.Logger) SessionRepository {
	return SessionRepository{db: db, log: log}
}

// Store upserts a record under "session:{opened_at_padded}:{uuid}".
// The opening and the closing of a session land on the same key.
func (r SessionRepository) Store(record SessionRecord) error {
	value, err := structpb.NewStruct(fromSessionRecord(record))
	if err != nil {
		return err
	}
	bytes, err := proto.Marshal(value)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(SessionKey(record.ID, record.OpenedAt), bytes)
	})
}

// List returns at most limit records, newest first. A limit <= 0 returns all.
func (r SessionRepository) List(limit int) ([]SessionRecord, error) {
	var values [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(sessionPrefix)
		for it.Seek(append(prefix, []byte("9999999999999999999")...)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(values) == limit {
				r.log.Debug(fmt.Sprintf("Maximum of %d sessions reached", limit))
				break
			}
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			values = append(values, value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	records := make([]SessionRecord, 0, len(values))
	for _, v := range values {
		record, err := DecodeSessionRecord(v)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func SessionKey(id uuid.UUID, openedAt time.Time) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", sessionPrefix, openedAt.UnixNano(), id))
}

// DecodeSessionRecord parses a journal value.
func DecodeSessionRecord(value []byte) (SessionRecord, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(value, &s); err != nil {
		return SessionRecord{}, err
	}
	return toSessionRecord(&s)
}

func fromSessionRecord(record SessionRecord) map[string]any {
	fields := map[string]any{
		"id":        record.ID.String(),
		"endpoint":  record.Endpoint,
		"opened_at": record.OpenedAt.UTC().Format(time.RFC3339Nano),
		"lines_in":  record.LinesIn,
		"lines_out": record.LinesOut,
		"reason":    record.Reason,
	}
	if record.ClosedAt != nil {
		fields["closed_at"] = record.ClosedAt.UTC().Format(time.RFC3339Nano)
	}
	return fields
}

func toSessionRecord(s *structpb.Struct) (SessionRecord, error) {
	fields := s.GetFields()
	id, err := uuid.Parse(fields["id"].GetStringValue())
	if err != nil {
		return SessionRecord{}, err
	}
	openedAt, err := time.Parse(time.RFC3339Nano, fields["opened_at"].GetStringValue())
	if err != nil {
		return SessionRecord{}, err
	}
	record := SessionRecord{
		ID:       id,
		Endpoint: fields["endpoint"].GetStringValue(),
		OpenedAt: openedAt,
		LinesIn:  int(fields["lines_in"].GetNumberValue()),
		LinesOut: int(fields["lines_out"].GetNumberValue()),
		Reason:   fields["reason"].GetStringValue(),
	}
	if closed, ok := fields["closed_at"]; ok {
		closedAt, err := time.Parse(time.RFC3339Nano, closed.GetStringValue())
		if err != nil {
			return SessionRecord{}, err
		}
		record.ClosedAt = &closedAt
	}
	return record, nil
}
