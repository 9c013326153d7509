// Package s3 implements a backend on top of an S3 bucket. Backend
// paths map to object keys; directories are synthesized from key
// prefixes with zero-byte "name/" marker objects so empty directories
// survive a listing.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dataexchange/sftpgate/pkg/backend"
)

// api is the subset of the S3 client the store needs. Tests substitute
// an in-memory fake; production code passes *s3.Client.
type api interface {
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *awss3.DeleteObjectsInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectsOutput, error)
	CopyObject(ctx context.Context, params *awss3.CopyObjectInput, optFns ...func(*awss3.Options)) (*awss3.CopyObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
}

// Config holds configuration for the S3 store.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool
}

// Store is an S3-backed implementation of backend.Backend.
type Store struct {
	client api
	bucket string
}

// New creates an S3 store with an existing client.
func New(client *awss3.Client, config Config) *Store {
	return &Store{client: client, bucket: config.Bucket}
}

// NewFromConfig creates an S3 store by building a client from config.
// When creds is non-nil it overrides the SDK's default credential
// chain; this is how assume-role credentials are plugged in.
func NewFromConfig(ctx context.Context, config Config, creds aws.CredentialsProvider) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	if creds != nil {
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*awss3.Options)

	if config.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}
	if config.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}

	return New(awss3.NewFromConfig(awsCfg, s3Opts...), config), nil
}

func (s *Store) Name() string {
	return "s3"
}

// Capabilities declares setstat as ignorable: object stores have no
// POSIX attributes to apply, and clients that chmod after upload must
// not see their transfer fail over it.
func (s *Store) Capabilities() backend.Capabilities {
	return backend.Capabilities{IgnoreSetstat: true}
}

func (s *Store) Join(elem ...string) string {
	return path.Join(elem...)
}

func (s *Store) Clean(p string) string {
	return path.Clean(p)
}

// key translates a rooted backend path to an object key.
func (s *Store) key(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func (s *Store) Open(ctx context.Context, p string) (backend.File, error) {
	key := s.key(p)
	resp, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("open %q: %w", p, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object body: %w", err)
	}

	return &objectFile{ctx: ctx, store: s, key: key, buf: data}, nil
}

func (s *Store) Create(ctx context.Context, p string) (backend.File, error) {
	return &objectFile{ctx: ctx, store: s, key: s.key(p), writable: true, dirty: true}, nil
}

func (s *Store) Stat(ctx context.Context, p string) (fs.FileInfo, error) {
	key := s.key(p)
	if key == "" {
		return &fileInfo{name: "/", dir: true}, nil
	}

	head, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return &fileInfo{
			name:    path.Base(key),
			size:    aws.ToInt64(head.ContentLength),
			modTime: aws.ToTime(head.LastModified),
		}, nil
	}
	if !isNotFoundError(err) {
		return nil, fmt.Errorf("s3 head object: %w", err)
	}

	// No object at the key: the path may still be a directory, either
	// by marker or implied by deeper keys.
	list, err := s.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(key + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 list objects: %w", err)
	}
	if len(list.Contents) > 0 {
		return &fileInfo{name: path.Base(key), dir: true}, nil
	}

	return nil, fmt.Errorf("stat %q: %w", p, fs.ErrNotExist)
}

func (s *Store) List(ctx context.Context, p string) ([]fs.FileInfo, error) {
	key := s.key(p)
	prefix := ""
	if key != "" {
		info, err := s.Stat(ctx, p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("list %q: %w", p, backend.ErrNotDirectory)
		}
		prefix = key + "/"
	}

	var infos []fs.FileInfo
	input := &awss3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}
	for {
		page, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("s3 list objects: %w", err)
		}

		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				// The directory's own marker.
				continue
			}
			infos = append(infos, &fileInfo{
				name:    name,
				size:    aws.ToInt64(obj.Size),
				modTime: aws.ToTime(obj.LastModified),
			})
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name == "" {
				continue
			}
			infos = append(infos, &fileInfo{name: name, dir: true})
		}

		if !aws.ToBool(page.IsTruncated) {
			break
		}
		input.ContinuationToken = page.NextContinuationToken
	}
	return infos, nil
}

func (s *Store) Mkdir(ctx context.Context, p string) error {
	key := s.key(p)
	if key == "" {
		return nil
	}
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key + "/"),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, p string) error {
	key := s.key(p)

	info, err := s.Stat(ctx, p)
	if err != nil {
		return err
	}

	if info.IsDir() {
		// Anything under the prefix other than the marker blocks removal.
		list, err := s.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:  aws.String(s.bucket),
			Prefix:  aws.String(key + "/"),
			MaxKeys: aws.Int32(2),
		})
		if err != nil {
			return fmt.Errorf("s3 list objects: %w", err)
		}
		for _, obj := range list.Contents {
			if aws.ToString(obj.Key) != key+"/" {
				return fmt.Errorf("removing %q: %w", p, backend.ErrDirNotEmpty)
			}
		}
		key += "/"
	}

	_, err = s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

func (s *Store) Rename(ctx context.Context, oldPath, newPath string) error {
	info, err := s.Stat(ctx, oldPath)
	if err != nil {
		return err
	}

	oldKey := s.key(oldPath)
	newKey := s.key(newPath)

	if !info.IsDir() {
		return s.moveObject(ctx, oldKey, newKey)
	}

	// Directory rename: rewrite every key under the old prefix, marker
	// included, then batch delete the originals.
	oldPrefix := oldKey + "/"
	newPrefix := newKey + "/"

	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(oldPrefix),
	}
	for {
		page, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return fmt.Errorf("s3 list objects: %w", err)
		}

		var deleted []types.ObjectIdentifier
		for _, obj := range page.Contents {
			src := aws.ToString(obj.Key)
			dst := newPrefix + strings.TrimPrefix(src, oldPrefix)
			if err := s.copyObject(ctx, src, dst); err != nil {
				return err
			}
			deleted = append(deleted, types.ObjectIdentifier{Key: obj.Key})
		}

		if len(deleted) > 0 {
			_, err = s.client.DeleteObjects(ctx, &awss3.DeleteObjectsInput{
				Bucket: aws.String(s.bucket),
				Delete: &types.Delete{Objects: deleted},
			})
			if err != nil {
				return fmt.Errorf("s3 delete objects: %w", err)
			}
		}

		if !aws.ToBool(page.IsTruncated) {
			break
		}
		input.ContinuationToken = page.NextContinuationToken
	}
	return nil
}

// Setstat always fails at this layer. The capability declaration above
// lets callers that want the ignore policy short-circuit before ever
// reaching here.
func (s *Store) Setstat(ctx context.Context, p string, attr *backend.FileAttributes) error {
	return fmt.Errorf("setstat %q: %w", p, backend.ErrUnsupportedAttributes)
}

func (s *Store) moveObject(ctx context.Context, oldKey, newKey string) error {
	if err := s.copyObject(ctx, oldKey, newKey); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(oldKey),
	})
	if err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

func (s *Store) copyObject(ctx context.Context, src, dst string) error {
	_, err := s.client.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + url.PathEscape(src)),
		Key:        aws.String(dst),
	})
	if err != nil {
		return fmt.Errorf("s3 copy object %q: %w", src, err)
	}
	return nil
}

// objectFile buffers a whole object in memory to satisfy the random
// access the transfer layer expects. SFTP clients overwhelmingly write
// sequentially, so the buffer is assembled in order and flushed once on
// close. The open-time context carries into the final flush so session
// teardown bounds the upload.
type objectFile struct {
	ctx      context.Context
	store    *Store
	key      string
	mu       sync.Mutex
	buf      []byte
	writable bool
	dirty    bool
	closed   bool
}

func (f *objectFile) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, fs.ErrClosed
	}
	if off >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *objectFile) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, fs.ErrClosed
	}
	if !f.writable {
		return 0, fs.ErrPermission
	}

	end := off + int64(len(p))
	if end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	copy(f.buf[off:], p)
	f.dirty = true
	return len(p), nil
}

// Close flushes the buffer to S3 for writable files. The upload happens
// here rather than per write so a transfer produces exactly one object
// version.
func (f *objectFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fs.ErrClosed
	}
	f.closed = true

	if !f.dirty {
		return nil
	}
	_, err := f.store.client.PutObject(f.ctx, &awss3.PutObjectInput{
		Bucket: aws.String(f.store.bucket),
		Key:    aws.String(f.key),
		Body:   bytes.NewReader(f.buf),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

type fileInfo struct {
	name    string
	size    int64
	dir     bool
	modTime time.Time
}

func (i *fileInfo) Name() string       { return i.name }
func (i *fileInfo) Size() int64        { return i.size }
func (i *fileInfo) ModTime() time.Time { return i.modTime }
func (i *fileInfo) IsDir() bool        { return i.dir }
func (i *fileInfo) Sys() any           { return nil }

func (i *fileInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}

// isNotFoundError checks if an error is an S3 not found error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "404")
}
