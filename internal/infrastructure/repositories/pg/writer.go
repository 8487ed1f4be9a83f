package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
)

type writer struct {
	tx   pgx.Tx
	ctx  context.Context
	done bool
}

func (w *writer) CreateSequence(ctx context.Context, seq models.Sequence) error {
	if seq.Locator.IsZero() {
		return errors.Wrap(ports.ErrInvalidName, "empty sequence name")
	}
	_, err := w.tx.Exec(ctx,
		`INSERT INTO mosaico.tbl_sequence (id, name, user_metadata, created_at) VALUES ($1, $2, $3, $4)`,
		seq.ID, seq.Name(), string(models.NormalizeMetadata(seq.UserMetadata)), seq.CreatedAt)
	if isUniqueViolation(err, "tbl_sequence_name_uniq") {
		return errors.Wrapf(ports.ErrConflict, "sequence '%s'", seq.Name())
	}
	return translate(err, fmt.Sprintf("create sequence '%s'", seq.Name()))
}

func (w *writer) CreateTopic(ctx context.Context, t models.Topic) error {
	if t.Locator.IsZero() {
		return errors.Wrap(ports.ErrInvalidName, "empty topic name")
	}
	var seqName string
	err := w.tx.QueryRow(ctx, `SELECT name FROM mosaico.tbl_sequence WHERE id = $1`, t.SequenceID).Scan(&seqName)
	if err != nil {
		return translate(err, fmt.Sprintf("sequence '%s'", t.SequenceID))
	}
	if seqName != t.Locator.Sequence().Name() {
		return errors.Wrapf(ports.ErrInvalidName, "topic '%s' is not under sequence '%s'", t.Name(), seqName)
	}

	_, err = w.tx.Exec(ctx,
		`INSERT INTO mosaico.tbl_topic (id, sequence_id, name, serialization_format, ontology_tag, user_metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.SequenceID, t.Name(), t.SerializationFormat, t.OntologyTag,
		string(models.NormalizeMetadata(t.UserMetadata)), t.CreatedAt)
	if isUniqueViolation(err, "tbl_topic_name_uniq") {
		return errors.Wrapf(ports.ErrConflict, "topic '%s'", t.Name())
	}
	return translate(err, fmt.Sprintf("create topic '%s'", t.Name()))
}

func (w *writer) AppendChunk(ctx context.Context, c models.Chunk) error {
	tag, err := w.tx.Exec(ctx,
		`UPDATE mosaico.tbl_topic
		    SET chunks_number = chunks_number + 1, total_size_bytes = total_size_bytes + $2
		  WHERE id = $1 AND chunks_number = $3`,
		c.TopicID, c.SizeBytes, c.Index)
	if err != nil {
		return translate(err, fmt.Sprintf("append chunk to topic '%s'", c.TopicID))
	}
	if tag.RowsAffected() == 0 {
		var current int64
		err := w.tx.QueryRow(ctx, `SELECT chunks_number FROM mosaico.tbl_topic WHERE id = $1`, c.TopicID).Scan(&current)
		if err != nil {
			return translate(err, fmt.Sprintf("topic '%s'", c.TopicID))
		}
		return errors.Wrapf(ports.ErrConflict, "chunk index %d, expected %d", c.Index, current)
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = w.tx.Exec(ctx,
		`INSERT INTO mosaico.tbl_chunk (topic_id, chunk_index, ts_start, ts_end, size_bytes, storage_key, digest, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.TopicID, c.Index, int64(c.Range.Start), int64(c.Range.End), c.SizeBytes, c.StorageKey, c.Digest, createdAt)
	return translate(err, fmt.Sprintf("insert chunk %d", c.Index))
}

func (w *writer) DeleteTopic(ctx context.Context, id models.ResourceID, token models.DataLossToken) error {
	if token == nil {
		return errors.Wrap(ports.ErrInvalidInput, "deleting a topic requires a data loss token")
	}
	tag, err := w.tx.Exec(ctx, `DELETE FROM mosaico.tbl_topic WHERE id = $1`, id)
	if err != nil {
		return translate(err, fmt.Sprintf("delete topic '%s'", id))
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ports.ErrNotFound, "topic '%s'", id)
	}
	return nil
}

func (w *writer) DeleteSequence(ctx context.Context, id models.ResourceID, token models.DataLossToken) error {
	if token == nil {
		return errors.Wrap(ports.ErrInvalidInput, "deleting a sequence requires a data loss token")
	}
	tag, err := w.tx.Exec(ctx, `DELETE FROM mosaico.tbl_sequence WHERE id = $1`, id)
	if err != nil {
		return translate(err, fmt.Sprintf("delete sequence '%s'", id))
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ports.ErrNotFound, "sequence '%s'", id)
	}
	return nil
}

func (w *writer) CreateNotify(ctx context.Context, n models.Notify) error {
	_, err := w.tx.Exec(ctx,
		`INSERT INTO mosaico.tbl_notify (target, notify_type, msg, created_at) VALUES ($1, $2, $3, $4)`,
		n.Target, string(n.Type), n.Msg, n.CreatedAt)
	return translate(err, "create notify")
}

func (w *writer) CreateLayer(ctx context.Context, l models.Layer) error {
	if l.Name == "" {
		return errors.Wrap(ports.ErrInvalidName, "empty layer name")
	}
	_, err := w.tx.Exec(ctx,
		`INSERT INTO mosaico.tbl_layer (name, description) VALUES ($1, $2)`, l.Name, l.Description)
	return translate(err, fmt.Sprintf("layer '%s'", l.Name))
}

// Commit commits the transaction
func (w *writer) Commit() error {
	if w.done {
		return errors.New("writer closed")
	}
	w.done = true
	if err := w.tx.Commit(w.ctx); err != nil {
		_ = w.tx.Rollback(w.ctx)
		return translate(err, "commit")
	}
	return nil
}

// Abort rolls the transaction back
func (w *writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	_ = w.tx.Rollback(w.ctx)
}
