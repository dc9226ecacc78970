package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

// DefaultMaxObjectBytes caps objects read back for serving.
const DefaultMaxObjectBytes = 10 << 20

// S3API is the subset of *s3.Client used here.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3Options struct {
	Client S3API
	Bucket string
	// Prefix is prepended to every key, without a trailing slash.
	Prefix string
	// MaxObjectBytes defaults to DefaultMaxObjectBytes.
	MaxObjectBytes int64
}

// S3Storage keeps uploads in a bucket and serves them by reading each
// object into memory.
type S3Storage struct {
	client    S3API
	bucket    string
	prefix    string
	maxObject int64
}

func NewS3Storage(opts S3Options) (*S3Storage, error) {
	if opts.Client == nil {
		return nil, xerrors.New("upload: s3 client is nil")
	}
	if opts.Bucket == "" {
		return nil, xerrors.New("upload: s3 bucket is required")
	}
	if opts.MaxObjectBytes <= 0 {
		opts.MaxObjectBytes = DefaultMaxObjectBytes
	}
	return &S3Storage{
		client:    opts.Client,
		bucket:    opts.Bucket,
		prefix:    strings.Trim(opts.Prefix, "/"),
		maxObject: opts.MaxObjectBytes,
	}, nil
}

func (s *S3Storage) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *S3Storage) Dir() string {
	return "s3://" + path.Join(s.bucket, s.prefix)
}

func (s *S3Storage) Put(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error) {
	key := s.key(name)
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		in.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", xerrors.Wrapf(err, "put s3://%s/%s", s.bucket, key)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// FS returns a read-only view of the bucket bound to ctx. Objects fetched
// through it are kept for its lifetime, so a stat followed by a read costs
// one request.
func (s *S3Storage) FS(ctx context.Context) fs.FS {
	return &s3FS{ctx: ctx, s: s, objects: make(map[string]*s3Object)}
}

type s3Object struct {
	data    []byte
	modTime time.Time
}

type s3FS struct {
	ctx context.Context
	s   *S3Storage

	mu      sync.Mutex
	objects map[string]*s3Object
}

func (f *s3FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) || name == "." {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	obj, err := f.fetch(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &s3File{Reader: bytes.NewReader(obj.data), name: path.Base(name), obj: obj}, nil
}

func (f *s3FS) fetch(name string) (*s3Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if obj, ok := f.objects[name]; ok {
		return obj, nil
	}

	out, err := f.s.client.GetObject(f.ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.s.bucket),
		Key:    aws.String(f.s.key(name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fs.ErrNotExist
		}
		return nil, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, f.s.maxObject+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.s.maxObject {
		return nil, xerrors.Newf("object %s exceeds %d bytes", name, f.s.maxObject)
	}
	obj := &s3Object{data: data}
	if out.LastModified != nil {
		obj.modTime = *out.LastModified
	}
	f.objects[name] = obj
	return obj, nil
}

type s3File struct {
	*bytes.Reader
	name string
	obj  *s3Object
}

func (f *s3File) Stat() (fs.FileInfo, error) { return s3Info{f}, nil }
func (f *s3File) Close() error               { return nil }

type s3Info struct{ f *s3File }

func (i s3Info) Name() string       { return i.f.name }
func (i s3Info) Size() int64        { return int64(len(i.f.obj.data)) }
func (i s3Info) Mode() fs.FileMode  { return 0o444 }
func (i s3Info) ModTime() time.Time { return i.f.obj.modTime }
func (i s3Info) IsDir() bool        { return false }
func (i s3Info) Sys() any           { return nil }
