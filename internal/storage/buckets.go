package storage

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

const (
	BucketAudio  = "question-audio"
	BucketImages = "question-images"
)

var (
	ErrUnknownBucket   = errors.New("unknown bucket")
	ErrUnsupportedType = errors.New("unsupported file type")
)

var bucketExtensions = map[string][]string{
	BucketAudio:  {".mp3", ".wav", ".ogg", ".m4a"},
	BucketImages: {".png", ".jpg", ".jpeg", ".webp", ".gif"},
}

var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// Object is an uploaded file as the client sees it.
type Object struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	PublicURL string `json:"public_url"`
}

// Buckets scopes a BlobStore into named buckets with public URLs.
type Buckets struct {
	store     BlobStore
	publicURL string
}

func NewBuckets(store BlobStore, publicURL string) *Buckets {
	return &Buckets{store: store, publicURL: strings.TrimSuffix(publicURL, "/")}
}

func KnownBucket(bucket string) bool {
	_, ok := bucketExtensions[bucket]
	return ok
}

// Upload stores r under a fresh key inside bucket, keeping filename's extension.
func (b *Buckets) Upload(bucket, filename string, r io.Reader) (Object, error) {
	allowed, ok := bucketExtensions[bucket]
	if !ok {
		return Object{}, ErrUnknownBucket
	}
	ext := strings.ToLower(path.Ext(filename))
	if !contains(allowed, ext) {
		return Object{}, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	key := uuid.NewString() + ext
	if _, err := b.store.Put(bucket+"/"+key, r); err != nil {
		return Object{}, err
	}
	return Object{Bucket: bucket, Key: key, PublicURL: b.PublicURL(bucket, key)}, nil
}

func (b *Buckets) Open(bucket, key string) (io.ReadCloser, string, error) {
	if !KnownBucket(bucket) {
		return nil, "", ErrUnknownBucket
	}
	rc, err := b.store.Get(bucket + "/" + key)
	if err != nil {
		return nil, "", err
	}
	ct, ok := contentTypes[strings.ToLower(path.Ext(key))]
	if !ok {
		ct = "application/octet-stream"
	}
	return rc, ct, nil
}

func (b *Buckets) PublicURL(bucket, key string) string {
	return b.publicURL + "/storage/" + bucket + "/" + key
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
