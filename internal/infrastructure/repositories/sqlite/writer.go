package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
)

type writer struct {
	tx   *sql.Tx
	done bool
}

func (w *writer) CreateSequence(ctx context.Context, seq models.Sequence) error {
	if seq.Locator.IsZero() {
		return errors.Wrap(ports.ErrInvalidName, "empty sequence name")
	}
	_, err := w.tx.ExecContext(ctx,
		`INSERT INTO tbl_sequence (id, name, user_metadata, created_at) VALUES (?, ?, ?, ?)`,
		seq.ID.String(), seq.Name(), string(models.NormalizeMetadata(seq.UserMetadata)), seq.CreatedAt.UnixNano())
	return translate(err, fmt.Sprintf("sequence '%s'", seq.Name()))
}

func (w *writer) CreateTopic(ctx context.Context, t models.Topic) error {
	if t.Locator.IsZero() {
		return errors.Wrap(ports.ErrInvalidName, "empty topic name")
	}
	var seqName string
	err := w.tx.QueryRowContext(ctx, `SELECT name FROM tbl_sequence WHERE id = ?`, t.SequenceID.String()).Scan(&seqName)
	if err != nil {
		return translate(err, fmt.Sprintf("sequence '%s'", t.SequenceID))
	}
	if seqName != t.Locator.Sequence().Name() {
		return errors.Wrapf(ports.ErrInvalidName, "topic '%s' is not under sequence '%s'", t.Name(), seqName)
	}
	_, err = w.tx.ExecContext(ctx,
		`INSERT INTO tbl_topic (id, sequence_id, name, serialization_format, ontology_tag, user_metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.SequenceID.String(), t.Name(), t.SerializationFormat, t.OntologyTag,
		string(models.NormalizeMetadata(t.UserMetadata)), t.CreatedAt.UnixNano())
	return translate(err, fmt.Sprintf("topic '%s'", t.Name()))
}

func (w *writer) AppendChunk(ctx context.Context, c models.Chunk) error {
	res, err := w.tx.ExecContext(ctx,
		`UPDATE tbl_topic SET chunks_number = chunks_number + 1, total_size_bytes = total_size_bytes + ?
		  WHERE id = ? AND chunks_number = ?`,
		c.SizeBytes, c.TopicID.String(), c.Index)
	if err != nil {
		return translate(err, fmt.Sprintf("append chunk to topic '%s'", c.TopicID))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var current int64
		err := w.tx.QueryRowContext(ctx, `SELECT chunks_number FROM tbl_topic WHERE id = ?`, c.TopicID.String()).Scan(&current)
		if err != nil {
			return translate(err, fmt.Sprintf("topic '%s'", c.TopicID))
		}
		return errors.Wrapf(ports.ErrConflict, "chunk index %d, expected %d", c.Index, current)
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = w.tx.ExecContext(ctx,
		`INSERT INTO tbl_chunk (topic_id, chunk_index, ts_start, ts_end, size_bytes, storage_key, digest, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.TopicID.String(), c.Index, int64(c.Range.Start), int64(c.Range.End), c.SizeBytes, c.StorageKey, c.Digest,
		createdAt.UnixNano())
	return translate(err, fmt.Sprintf("insert chunk %d", c.Index))
}

func (w *writer) deleteByID(ctx context.Context, table, what string, id models.ResourceID) error {
	res, err := w.tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id.String())
	if err != nil {
		return translate(err, fmt.Sprintf("delete %s '%s'", what, id))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ports.ErrNotFound, "%s '%s'", what, id)
	}
	return nil
}

func (w *writer) DeleteTopic(ctx context.Context, id models.ResourceID, token models.DataLossToken) error {
	if token == nil {
		return errors.Wrap(ports.ErrInvalidInput, "deleting a topic requires a data loss token")
	}
	return w.deleteByID(ctx, "tbl_topic", "topic", id)
}

func (w *writer) DeleteSequence(ctx context.Context, id models.ResourceID, token models.DataLossToken) error {
	if token == nil {
		return errors.Wrap(ports.ErrInvalidInput, "deleting a sequence requires a data loss token")
	}
	return w.deleteByID(ctx, "tbl_sequence", "sequence", id)
}

func (w *writer) CreateNotify(ctx context.Context, n models.Notify) error {
	var msg sql.NullString
	if n.Msg != nil {
		msg = sql.NullString{String: *n.Msg, Valid: true}
	}
	_, err := w.tx.ExecContext(ctx,
		`INSERT INTO tbl_notify (target, notify_type, msg, created_at) VALUES (?, ?, ?, ?)`,
		n.Target, string(n.Type), msg, n.CreatedAt.UnixNano())
	return translate(err, "create notify")
}

func (w *writer) CreateLayer(ctx context.Context, l models.Layer) error {
	if l.Name == "" {
		return errors.Wrap(ports.ErrInvalidName, "empty layer name")
	}
	_, err := w.tx.ExecContext(ctx, `INSERT INTO tbl_layer (name, description) VALUES (?, ?)`, l.Name, l.Description)
	return translate(err, fmt.Sprintf("layer '%s'", l.Name))
}

func (w *writer) Commit() error {
	if w.done {
		return errors.New("writer closed")
	}
	w.done = true
	return translate(w.tx.Commit(), "commit")
}

func (w *writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	_ = w.tx.Rollback()
}
