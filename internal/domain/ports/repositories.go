package ports

import (
	"context"

	"mosaicod/internal/domain/models"
	"mosaicod/internal/patterns"
)

type (
	// Scope defines the scope of operations
	Scope interface {
		IsEmpty() bool
		String() string
	}

	// Option defines options for operations
	Option interface{}

	// ReaderNoClose defines read operations without close
	ReaderNoClose interface {
		GetSequenceByName(ctx context.Context, locator models.SequenceLocator) (*models.Sequence, error)
		GetSequenceByID(ctx context.Context, id models.ResourceID) (*models.Sequence, error)
		ListSequences(ctx context.Context, consume func(models.Sequence) error, scope Scope) error

		GetTopicByName(ctx context.Context, locator models.TopicLocator) (*models.Topic, error)
		GetTopicByID(ctx context.Context, id models.ResourceID) (*models.Topic, error)
		// ListTopics lists the topics of a sequence in creation order
		ListTopics(ctx context.Context, sequenceID models.ResourceID, consume func(models.Topic) error) error
		// ListChunks lists committed chunks of a topic in commit order
		ListChunks(ctx context.Context, topicID models.ResourceID, consume func(models.Chunk) error, opts ...Option) error

		ListNotifies(ctx context.Context, consume func(models.Notify) error, scope Scope) error
		ListLayers(ctx context.Context, consume func(models.Layer) error, scope Scope) error
	}

	// Reader defines read operations
	Reader interface {
		ReaderNoClose
		Close() error
	}

	// Writer defines write operations. Nothing is visible to readers before Commit.
	Writer interface {
		CreateSequence(ctx context.Context, seq models.Sequence) error
		CreateTopic(ctx context.Context, topic models.Topic) error
		// AppendChunk records the next chunk of a topic and updates its totals.
		// The chunk index must equal the current chunks number of the topic.
		AppendChunk(ctx context.Context, chunk models.Chunk) error
		// DeleteTopic removes a topic with its chunk records
		DeleteTopic(ctx context.Context, id models.ResourceID, token models.DataLossToken) error
		// DeleteSequence removes a sequence with all its topics and chunk records
		DeleteSequence(ctx context.Context, id models.ResourceID, token models.DataLossToken) error
		CreateNotify(ctx context.Context, notify models.Notify) error
		CreateLayer(ctx context.Context, layer models.Layer) error

		Commit() error
		Abort()
	}

	// Registry defines the registry interface
	Registry interface {
		Subject() patterns.Subject
		Writer(ctx context.Context) (Writer, error)
		Reader(ctx context.Context) (Reader, error)
		Close() error
	}
)
