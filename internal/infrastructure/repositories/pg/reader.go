package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
)

type reader struct {
	tx  pgx.Tx
	ctx context.Context
}

// Close ends the read-only transaction
func (r *reader) Close() error {
	return r.tx.Rollback(r.ctx)
}

const (
	sequenceColumns = `id, name, user_metadata::text, created_at`
	topicColumns    = `t.id, t.sequence_id, t.name, t.serialization_format, t.ontology_tag,
		t.user_metadata::text, t.created_at, t.chunks_number, t.total_size_bytes`
	chunkColumns = `topic_id, chunk_index, ts_start, ts_end, size_bytes, storage_key, digest, created_at`
)

func scanSequence(row pgx.Row) (models.Sequence, error) {
	var (
		seq      models.Sequence
		name     string
		metadata string
	)
	if err := row.Scan(&seq.ID, &name, &metadata, &seq.CreatedAt); err != nil {
		return seq, err
	}
	loc, err := models.NewSequenceLocator(name)
	if err != nil {
		return seq, errors.WithMessage(err, "stored sequence name")
	}
	seq.Locator = loc
	seq.UserMetadata = json.RawMessage(metadata)
	seq.CreatedAt = seq.CreatedAt.UTC()
	return seq, nil
}

func scanTopic(row pgx.Row) (models.Topic, error) {
	var (
		t        models.Topic
		name     string
		metadata string
	)
	err := row.Scan(&t.ID, &t.SequenceID, &name, &t.SerializationFormat, &t.OntologyTag,
		&metadata, &t.CreatedAt, &t.ChunksNumber, &t.TotalSizeBytes)
	if err != nil {
		return t, err
	}
	loc, err := models.NewTopicLocator(name)
	if err != nil {
		return t, errors.WithMessage(err, "stored topic name")
	}
	t.Locator = loc
	t.UserMetadata = json.RawMessage(metadata)
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func scanChunk(row pgx.Row) (models.Chunk, error) {
	var (
		c          models.Chunk
		start, end int64
	)
	err := row.Scan(&c.TopicID, &c.Index, &start, &end, &c.SizeBytes, &c.StorageKey, &c.Digest, &c.CreatedAt)
	c.Range = models.TimestampRange{Start: models.Timestamp(start), End: models.Timestamp(end)}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, err
}

func (r *reader) GetSequenceByName(ctx context.Context, locator models.SequenceLocator) (*models.Sequence, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+sequenceColumns+` FROM mosaico.tbl_sequence WHERE name = $1`, locator.Name())
	seq, err := scanSequence(row)
	if err != nil {
		return nil, translate(err, fmt.Sprintf("sequence '%s'", locator.Name()))
	}
	return &seq, nil
}

func (r *reader) GetSequenceByID(ctx context.Context, id models.ResourceID) (*models.Sequence, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+sequenceColumns+` FROM mosaico.tbl_sequence WHERE id = $1`, id)
	seq, err := scanSequence(row)
	if err != nil {
		return nil, translate(err, fmt.Sprintf("sequence '%s'", id))
	}
	return &seq, nil
}

func (r *reader) ListSequences(ctx context.Context, consume func(models.Sequence) error, scope ports.Scope) error {
	query := `SELECT ` + sequenceColumns + ` FROM mosaico.tbl_sequence`
	var args []any
	if ns, ok := scope.(ports.NameScope); ok && !ns.IsEmpty() {
		query += ` WHERE name = ANY($1)`
		args = append(args, ns.Names)
	}
	query += ` ORDER BY created_at, name`

	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return errors.WithMessage(err, "list sequences")
	}
	defer rows.Close()
	for rows.Next() {
		seq, err := scanSequence(rows)
		if err != nil {
			return errors.WithMessage(err, "scan sequence")
		}
		if err := consume(seq); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *reader) GetTopicByName(ctx context.Context, locator models.TopicLocator) (*models.Topic, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+topicColumns+` FROM mosaico.tbl_topic t WHERE t.name = $1`, locator.Name())
	t, err := scanTopic(row)
	if err != nil {
		return nil, translate(err, fmt.Sprintf("topic '%s'", locator.Name()))
	}
	return &t, nil
}

func (r *reader) GetTopicByID(ctx context.Context, id models.ResourceID) (*models.Topic, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+topicColumns+` FROM mosaico.tbl_topic t WHERE t.id = $1`, id)
	t, err := scanTopic(row)
	if err != nil {
		return nil, translate(err, fmt.Sprintf("topic '%s'", id))
	}
	return &t, nil
}

func (r *reader) ListTopics(ctx context.Context, sequenceID models.ResourceID, consume func(models.Topic) error) error {
	if _, err := r.GetSequenceByID(ctx, sequenceID); err != nil {
		return err
	}
	rows, err := r.tx.Query(ctx,
		`SELECT `+topicColumns+` FROM mosaico.tbl_topic t WHERE t.sequence_id = $1 ORDER BY t.position`, sequenceID)
	if err != nil {
		return errors.WithMessage(err, "list topics")
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return errors.WithMessage(err, "scan topic")
		}
		if err := consume(t); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *reader) ListChunks(ctx context.Context, topicID models.ResourceID, consume func(models.Chunk) error, opts ...ports.Option) error {
	if _, err := r.GetTopicByID(ctx, topicID); err != nil {
		return err
	}
	query := `SELECT ` + chunkColumns + ` FROM mosaico.tbl_chunk WHERE topic_id = $1`
	args := []any{topicID}
	if window, ok := ports.RangeFromOptions(opts...); ok {
		query += ` AND ts_start <= $2 AND ts_end >= $3`
		args = append(args, int64(window.End), int64(window.Start))
	}
	query += ` ORDER BY chunk_index`

	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return errors.WithMessage(err, "list chunks")
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return errors.WithMessage(err, "scan chunk")
		}
		if err := consume(c); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *reader) ListNotifies(ctx context.Context, consume func(models.Notify) error, scope ports.Scope) error {
	query := `SELECT target, notify_type, msg, created_at FROM mosaico.tbl_notify`
	var args []any
	if ns, ok := scope.(ports.NameScope); ok && !ns.IsEmpty() {
		query += ` WHERE target = ANY($1)`
		args = append(args, ns.Names)
	}
	query += ` ORDER BY id`

	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return errors.WithMessage(err, "list notifies")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			n   models.Notify
			typ string
		)
		if err := rows.Scan(&n.Target, &typ, &n.Msg, &n.CreatedAt); err != nil {
			return errors.WithMessage(err, "scan notify")
		}
		n.Type = models.NotifyType(typ)
		n.CreatedAt = n.CreatedAt.UTC()
		if err := consume(n); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *reader) ListLayers(ctx context.Context, consume func(models.Layer) error, scope ports.Scope) error {
	query := `SELECT name, description FROM mosaico.tbl_layer`
	var args []any
	if ns, ok := scope.(ports.NameScope); ok && !ns.IsEmpty() {
		query += ` WHERE name = ANY($1)`
		args = append(args, ns.Names)
	}
	query += ` ORDER BY position`

	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return errors.WithMessage(err, "list layers")
	}
	defer rows.Close()
	for rows.Next() {
		var l models.Layer
		if err := rows.Scan(&l.Name, &l.Description); err != nil {
			return errors.WithMessage(err, "scan layer")
		}
		if err := consume(l); err != nil {
			return err
		}
	}
	return rows.Err()
}
