// Package storage keeps uploaded order videos.
package storage

import (
	"context"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const VideoBucket = "flipbook-videos"

// GridFSVideoStorage stores videos in a GridFS bucket, addressed by path.
type GridFSVideoStorage struct {
	db     *mongo.Database
	bucket string
}

func NewGridFSVideoStorage(db *mongo.Database) *GridFSVideoStorage {
	return &GridFSVideoStorage{db: db, bucket: VideoBucket}
}

// open returns a bucket bound to the context deadline. Buckets carry their
// own deadlines, so each call gets a fresh one.
func (s *GridFSVideoStorage) open(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(s.bucket))
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		if err := b.SetWriteDeadline(dl); err != nil {
			return nil, err
		}
		if err := b.SetReadDeadline(dl); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (s *GridFSVideoStorage) Upload(ctx context.Context, path string, r io.Reader) error {
	b, err := s.open(ctx)
	if err != nil {
		return err
	}
	if _, err := b.UploadFromStream(path, r); err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	return nil
}

// Delete removes every file stored under path. A missing path is not an error.
func (s *GridFSVideoStorage) Delete(ctx context.Context, path string) error {
	b, err := s.open(ctx)
	if err != nil {
		return err
	}
	cur, err := b.Find(bson.M{"filename": path})
	if err != nil {
		return err
	}
	var files []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &files); err != nil {
		return err
	}
	for _, f := range files {
		if err := b.Delete(f.ID); err != nil {
			return fmt.Errorf("delete %s: %w", path, err)
		}
	}
	return nil
}
