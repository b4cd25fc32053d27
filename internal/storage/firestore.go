package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/harvester/internal/config"
	"github.com/pauljones0/harvester/internal/models"
	"github.com/pauljones0/harvester/internal/validator"
)

const createdAtField = "createdAt"

var ErrChunkTooLarge = fmt.Errorf("chunk exceeds %d writes", config.MaxWritesPerCommit)

// Client stores each identity's posts at {users}/{uid}/{posts}/{postID}.
type Client struct {
	client          *firestore.Client
	usersCollection string
	postsCollection string
	validator       *validator.Validator
}

func New(ctx context.Context, projectID, usersCollection, postsCollection string, opts ...option.ClientOption) (*Client, error) {
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &Client{
		client:          client,
		usersCollection: usersCollection,
		postsCollection: postsCollection,
		validator:       validator.New(),
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) posts(uid string) *firestore.CollectionRef {
	return c.client.Collection(c.usersCollection).Doc(uid).Collection(c.postsCollection)
}

// DocID maps a post id onto a legal Firestore document id. Slashes and other
// reserved characters are escaped, so ids containing them stay addressable.
func DocID(id string) string {
	esc := url.PathEscape(id)
	switch {
	case esc == "." || esc == "..":
		esc = strings.ReplaceAll(esc, ".", "%2E")
	case strings.HasPrefix(esc, "__") && strings.HasSuffix(esc, "__"):
		esc = "%5F" + esc[1:]
	}
	return esc
}

// CommitChunk upserts posts in one atomic batch commit.
func (c *Client) CommitChunk(ctx context.Context, uid string, posts []models.Post) error {
	if len(posts) > config.MaxWritesPerCommit {
		return ErrChunkTooLarge
	}
	if len(posts) == 0 {
		return nil
	}

	col := c.posts(uid)
	batch := c.client.Batch()
	for _, p := range posts {
		batch.Set(col.Doc(DocID(p.ID)), p)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %d posts for %s: %w", len(posts), uid, err)
	}
	return nil
}

// UpdateField changes one field of a stored post, retrying transient failures.
func (c *Client) UpdateField(ctx context.Context, uid, id, field string, value any) error {
	docRef := c.posts(uid).Doc(DocID(id))

	err := retry.Do(
		func() error {
			_, err := docRef.Update(ctx, []firestore.Update{
				{Path: field, Value: value},
			})
			if err != nil && isPermanent(err) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Attempts(4),
		retry.Delay(250*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.MaxJitter(250*time.Millisecond),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Retrying post field update", "uid", uid, "id", id, "field", field, "attempt", n, "error", err)
		}),
	)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("post %s: %w", id, models.ErrPostNotFound)
		}
		return fmt.Errorf("failed to update %s on post %s: %w", field, id, err)
	}
	return nil
}

func isPermanent(err error) bool {
	switch status.Code(err) {
	case codes.NotFound, codes.InvalidArgument, codes.PermissionDenied, codes.Unauthenticated, codes.FailedPrecondition:
		return true
	default:
		return false
	}
}

// Watch streams the full, newest-first post set for uid until ctx is cancelled.
func (c *Client) Watch(ctx context.Context, uid string, onSnapshot func([]models.Post)) error {
	snapshots := c.posts(uid).OrderBy(createdAtField, firestore.Desc).Snapshots(ctx)
	defer snapshots.Stop()

	for {
		snap, err := snapshots.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read snapshot for %s: %w", uid, err)
		}

		docs, err := snap.Documents.GetAll()
		if err != nil {
			return fmt.Errorf("failed to read snapshot documents for %s: %w", uid, err)
		}

		posts := make([]models.Post, 0, len(docs))
		for _, doc := range docs {
			var p models.Post
			if err := doc.DataTo(&p); err != nil {
				slog.Warn("Skipping undecodable remote post", "uid", uid, "doc", doc.Ref.ID, "error", err)
				continue
			}
			if p.ID == "" {
				p.ID = doc.Ref.ID
			}
			posts = append(posts, p)
		}
		onSnapshot(c.validator.ValidPosts("firestore:"+uid, posts))
	}
}
