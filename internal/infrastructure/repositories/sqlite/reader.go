package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type reader struct {
	q querier
}

func (r *reader) Close() error {
	return nil
}

const (
	sequenceColumns = `id, name, user_metadata, created_at`
	topicColumns    = `id, sequence_id, name, serialization_format, ontology_tag, user_metadata, created_at, chunks_number, total_size_bytes`
	chunkColumns    = `topic_id, chunk_index, ts_start, ts_end, size_bytes, storage_key, digest, created_at`
)

func fromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

func scanSequence(row scanner) (models.Sequence, error) {
	var (
		seq       models.Sequence
		name      string
		metadata  string
		createdAt int64
	)
	if err := row.Scan(&seq.ID, &name, &metadata, &createdAt); err != nil {
		return seq, err
	}
	loc, err := models.NewSequenceLocator(name)
	if err != nil {
		return seq, errors.WithMessage(err, "stored sequence name")
	}
	seq.Locator = loc
	seq.UserMetadata = json.RawMessage(metadata)
	seq.CreatedAt = fromUnixNano(createdAt)
	return seq, nil
}

func scanTopic(row scanner) (models.Topic, error) {
	var (
		t         models.Topic
		name      string
		metadata  string
		createdAt int64
	)
	err := row.Scan(&t.ID, &t.SequenceID, &name, &t.SerializationFormat, &t.OntologyTag,
		&metadata, &createdAt, &t.ChunksNumber, &t.TotalSizeBytes)
	if err != nil {
		return t, err
	}
	loc, err := models.NewTopicLocator(name)
	if err != nil {
		return t, errors.WithMessage(err, "stored topic name")
	}
	t.Locator = loc
	t.UserMetadata = json.RawMessage(metadata)
	t.CreatedAt = fromUnixNano(createdAt)
	return t, nil
}

func scanChunk(row scanner) (models.Chunk, error) {
	var (
		c                     models.Chunk
		start, end, createdAt int64
	)
	err := row.Scan(&c.TopicID, &c.Index, &start, &end, &c.SizeBytes, &c.StorageKey, &c.Digest, &createdAt)
	c.Range = models.TimestampRange{Start: models.Timestamp(start), End: models.Timestamp(end)}
	c.CreatedAt = fromUnixNano(createdAt)
	return c, err
}

// nameFilter renders "column IN (?, ...)" for a name scope
func nameFilter(column string, scope ports.Scope) (string, []any) {
	ns, ok := scope.(ports.NameScope)
	if !ok || ns.IsEmpty() {
		return "", nil
	}
	marks := make([]string, len(ns.Names))
	args := make([]any, len(ns.Names))
	for i, n := range ns.Names {
		marks[i] = "?"
		args[i] = n
	}
	return fmt.Sprintf(" WHERE %s IN (%s)", column, strings.Join(marks, ", ")), args
}

func each[T any](ctx context.Context, q querier, scan func(scanner) (T, error), consume func(T) error, query string, args ...any) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.WithMessage(err, "query")
	}
	defer rows.Close()
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return errors.WithMessage(err, "scan")
		}
		if err := consume(item); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *reader) GetSequenceByName(ctx context.Context, locator models.SequenceLocator) (*models.Sequence, error) {
	seq, err := scanSequence(r.q.QueryRowContext(ctx,
		`SELECT `+sequenceColumns+` FROM tbl_sequence WHERE name = ?`, locator.Name()))
	if err != nil {
		return nil, translate(err, fmt.Sprintf("sequence '%s'", locator.Name()))
	}
	return &seq, nil
}

func (r *reader) GetSequenceByID(ctx context.Context, id models.ResourceID) (*models.Sequence, error) {
	seq, err := scanSequence(r.q.QueryRowContext(ctx,
		`SELECT `+sequenceColumns+` FROM tbl_sequence WHERE id = ?`, id.String()))
	if err != nil {
		return nil, translate(err, fmt.Sprintf("sequence '%s'", id))
	}
	return &seq, nil
}

func (r *reader) ListSequences(ctx context.Context, consume func(models.Sequence) error, scope ports.Scope) error {
	where, args := nameFilter("name", scope)
	return each(ctx, r.q, scanSequence, consume,
		`SELECT `+sequenceColumns+` FROM tbl_sequence`+where+` ORDER BY created_at, name`, args...)
}

func (r *reader) GetTopicByName(ctx context.Context, locator models.TopicLocator) (*models.Topic, error) {
	t, err := scanTopic(r.q.QueryRowContext(ctx,
		`SELECT `+topicColumns+` FROM tbl_topic WHERE name = ?`, locator.Name()))
	if err != nil {
		return nil, translate(err, fmt.Sprintf("topic '%s'", locator.Name()))
	}
	return &t, nil
}

func (r *reader) GetTopicByID(ctx context.Context, id models.ResourceID) (*models.Topic, error) {
	t, err := scanTopic(r.q.QueryRowContext(ctx,
		`SELECT `+topicColumns+` FROM tbl_topic WHERE id = ?`, id.String()))
	if err != nil {
		return nil, translate(err, fmt.Sprintf("topic '%s'", id))
	}
	return &t, nil
}

func (r *reader) ListTopics(ctx context.Context, sequenceID models.ResourceID, consume func(models.Topic) error) error {
	if _, err := r.GetSequenceByID(ctx, sequenceID); err != nil {
		return err
	}
	return each(ctx, r.q, scanTopic, consume,
		`SELECT `+topicColumns+` FROM tbl_topic WHERE sequence_id = ? ORDER BY position`, sequenceID.String())
}

func (r *reader) ListChunks(ctx context.Context, topicID models.ResourceID, consume func(models.Chunk) error, opts ...ports.Option) error {
	if _, err := r.GetTopicByID(ctx, topicID); err != nil {
		return err
	}
	query := `SELECT ` + chunkColumns + ` FROM tbl_chunk WHERE topic_id = ?`
	args := []any{topicID.String()}
	if window, ok := ports.RangeFromOptions(opts...); ok {
		query += ` AND ts_start <= ? AND ts_end >= ?`
		args = append(args, int64(window.End), int64(window.Start))
	}
	return each(ctx, r.q, scanChunk, consume, query+` ORDER BY chunk_index`, args...)
}

func scanNotify(row scanner) (models.Notify, error) {
	var (
		n         models.Notify
		typ       string
		msg       sql.NullString
		createdAt int64
	)
	if err := row.Scan(&n.Target, &typ, &msg, &createdAt); err != nil {
		return n, err
	}
	n.Type = models.NotifyType(typ)
	if msg.Valid {
		n.Msg = &msg.String
	}
	n.CreatedAt = fromUnixNano(createdAt)
	return n, nil
}

func (r *reader) ListNotifies(ctx context.Context, consume func(models.Notify) error, scope ports.Scope) error {
	where, args := nameFilter("target", scope)
	return each(ctx, r.q, scanNotify, consume,
		`SELECT target, notify_type, msg, created_at FROM tbl_notify`+where+` ORDER BY id`, args...)
}

func scanLayer(row scanner) (models.Layer, error) {
	var l models.Layer
	err := row.Scan(&l.Name, &l.Description)
	return l, err
}

func (r *reader) ListLayers(ctx context.Context, consume func(models.Layer) error, scope ports.Scope) error {
	where, args := nameFilter("name", scope)
	return each(ctx, r.q, scanLayer, consume,
		`SELECT name, description FROM tbl_layer`+where+` ORDER BY position`, args...)
}
