package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dataexchange/sftpgate/pkg/backend"
)

// fakeS3 is an in-memory object store implementing the api subset.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) GetObject(_ context.Context, params *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey: the specified key does not exist")
	}
	return &awss3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(params.Key)] = data
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, params *awss3.HeadObjectInput, _ ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, errors.New("NotFound: 404")
	}
	now := time.Now()
	return &awss3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(data))),
		LastModified:  &now,
	}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, params *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(params.Key))
	return &awss3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, params *awss3.DeleteObjectsInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, obj := range params.Delete.Objects {
		delete(f.objects, aws.ToString(obj.Key))
	}
	return &awss3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, params *awss3.CopyObjectInput, _ ...func(*awss3.Options)) (*awss3.CopyObjectOutput, error) {
	src := aws.ToString(params.CopySource)
	if i := strings.IndexByte(src, '/'); i >= 0 {
		src = src[i+1:]
	}
	key, err := url.PathUnescape(src)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey: copy source missing")
	}
	f.objects[aws.ToString(params.Key)] = append([]byte(nil), data...)
	return &awss3.CopyObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, params *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := aws.ToString(params.Prefix)
	delim := aws.ToString(params.Delimiter)
	now := time.Now()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &awss3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	seenPrefixes := map[string]bool{}
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		if delim != "" {
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+1]
				if !seenPrefixes[cp] {
					seenPrefixes[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(f.objects[k]))),
			LastModified: &now,
		})
		if params.MaxKeys != nil && int32(len(out.Contents)) >= aws.ToInt32(params.MaxKeys) {
			break
		}
	}
	out.KeyCount = aws.Int32(int32(len(out.Contents)))
	return out, nil
}

func newTestStore() (*Store, *fakeS3) {
	fake := newFakeS3()
	return &Store{client: fake, bucket: "transfer-bucket"}, fake
}

func TestWriteReadRoundTrip(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()

	f, err := s.Create(ctx, "/alice/report.csv")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.WriteAt([]byte("id,total\n"), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if _, err := f.WriteAt([]byte("1,99\n"), 9); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, ok := fake.objects["alice/report.csv"]; !ok {
		t.Fatal("object not stored under expected key")
	}

	got, err := backend.ReadFile(ctx, s, "/alice/report.csv")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "id,total\n1,99\n" {
		t.Fatalf("read %q", got)
	}
}

func TestWriteNothingUploadsEmptyObject(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()

	f, err := s.Create(ctx, "/alice/empty.txt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if data, ok := fake.objects["alice/empty.txt"]; !ok || len(data) != 0 {
		t.Fatalf("empty object missing or non-empty: %v %d", ok, len(data))
	}
}

func TestCloseFlushUsesOpenContext(t *testing.T) {
	s, fake := newTestStore()
	ctx, cancel := context.WithCancel(context.Background())

	f, err := s.Create(ctx, "/alice/cancelled.txt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.WriteAt([]byte("payload"), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	// Cancelling the session context before teardown must abort the
	// final upload instead of flushing in the background.
	cancel()
	if err := f.Close(); !errors.Is(err, context.Canceled) {
		t.Fatalf("Close after cancel = %v, want context.Canceled", err)
	}
	if _, ok := fake.objects["alice/cancelled.txt"]; ok {
		t.Fatal("cancelled flush still stored the object")
	}
}

func TestOpenMissing(t *testing.T) {
	s, _ := newTestStore()
	if _, err := s.Open(context.Background(), "/ghost.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Open missing = %v, want fs.ErrNotExist", err)
	}
}

func TestStat(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()
	fake.objects["alice/data.bin"] = []byte("12345")
	fake.objects["bob/"] = nil

	info, err := s.Stat(ctx, "/alice/data.bin")
	if err != nil {
		t.Fatalf("Stat file: %v", err)
	}
	if info.IsDir() || info.Size() != 5 || info.Name() != "data.bin" {
		t.Fatalf("file info = %v dir=%v size=%d", info.Name(), info.IsDir(), info.Size())
	}

	// Directory implied by a deeper key, no marker.
	info, err = s.Stat(ctx, "/alice")
	if err != nil {
		t.Fatalf("Stat implied dir: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("implied directory not reported as dir")
	}

	// Directory with only a marker.
	info, err = s.Stat(ctx, "/bob")
	if err != nil {
		t.Fatalf("Stat marker dir: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("marker directory not reported as dir")
	}

	// Root always exists.
	info, err = s.Stat(ctx, "/")
	if err != nil {
		t.Fatalf("Stat root: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("root not reported as dir")
	}

	if _, err := s.Stat(ctx, "/nothing"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Stat missing = %v, want fs.ErrNotExist", err)
	}
}

func TestListSynthesizesDirectories(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()
	fake.objects["alice/a.txt"] = []byte("a")
	fake.objects["alice/b.txt"] = []byte("bb")
	fake.objects["alice/sub/"] = nil
	fake.objects["alice/deep/nested.txt"] = []byte("n")

	infos, err := s.List(ctx, "/alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	byName := map[string]fs.FileInfo{}
	for _, info := range infos {
		byName[info.Name()] = info
	}
	if len(byName) != 4 {
		t.Fatalf("listed %d entries, want 4: %v", len(byName), byName)
	}
	if byName["a.txt"].IsDir() || byName["a.txt"].Size() != 1 {
		t.Error("a.txt misreported")
	}
	if byName["b.txt"].Size() != 2 {
		t.Error("b.txt size wrong")
	}
	if !byName["sub"].IsDir() {
		t.Error("marker dir not synthesized")
	}
	if !byName["deep"].IsDir() {
		t.Error("implied dir not synthesized")
	}
}

func TestMkdirCreatesMarker(t *testing.T) {
	s, fake := newTestStore()
	if err := s.Mkdir(context.Background(), "/carol/inbox"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, ok := fake.objects["carol/inbox/"]; !ok {
		t.Fatal("marker object not created")
	}
}

func TestRemove(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()
	fake.objects["alice/doc.txt"] = []byte("x")
	fake.objects["alice/full/"] = nil
	fake.objects["alice/full/file.txt"] = []byte("y")
	fake.objects["alice/empty/"] = nil

	if err := s.Remove(ctx, "/alice/doc.txt"); err != nil {
		t.Fatalf("Remove file: %v", err)
	}
	if _, ok := fake.objects["alice/doc.txt"]; ok {
		t.Fatal("file still present")
	}

	if err := s.Remove(ctx, "/alice/full"); !errors.Is(err, backend.ErrDirNotEmpty) {
		t.Fatalf("Remove non-empty dir = %v, want ErrDirNotEmpty", err)
	}

	if err := s.Remove(ctx, "/alice/empty"); err != nil {
		t.Fatalf("Remove empty dir: %v", err)
	}
	if _, ok := fake.objects["alice/empty/"]; ok {
		t.Fatal("marker still present")
	}
}

func TestRenameFile(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()
	fake.objects["alice/old.txt"] = []byte("payload")

	if err := s.Rename(ctx, "/alice/old.txt", "/alice/new.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, ok := fake.objects["alice/old.txt"]; ok {
		t.Fatal("old key still present")
	}
	if string(fake.objects["alice/new.txt"]) != "payload" {
		t.Fatal("new key missing or wrong content")
	}
}

func TestRenameDirectoryRecursive(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()
	fake.objects["alice/in/"] = nil
	fake.objects["alice/in/a.txt"] = []byte("a")
	fake.objects["alice/in/sub/b.txt"] = []byte("b")

	if err := s.Rename(ctx, "/alice/in", "/alice/out"); err != nil {
		t.Fatalf("Rename dir: %v", err)
	}

	for _, gone := range []string{"alice/in/", "alice/in/a.txt", "alice/in/sub/b.txt"} {
		if _, ok := fake.objects[gone]; ok {
			t.Errorf("old key %q still present", gone)
		}
	}
	if string(fake.objects["alice/out/a.txt"]) != "a" {
		t.Error("a.txt not moved")
	}
	if string(fake.objects["alice/out/sub/b.txt"]) != "b" {
		t.Error("nested b.txt not moved")
	}
	if _, ok := fake.objects["alice/out/"]; !ok {
		t.Error("marker not moved")
	}
}

func TestSetstatUnsupported(t *testing.T) {
	s, _ := newTestStore()
	mode := fs.FileMode(0o600)
	err := s.Setstat(context.Background(), "/f.txt", &backend.FileAttributes{Mode: &mode})
	if !errors.Is(err, backend.ErrUnsupportedAttributes) {
		t.Fatalf("Setstat = %v, want ErrUnsupportedAttributes", err)
	}
	if !s.Capabilities().IgnoreSetstat {
		t.Fatal("IgnoreSetstat capability not declared")
	}
}

func TestReadOnlyFileRejectsWrites(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()
	fake.objects["r.txt"] = []byte("ro")

	f, err := s.Open(ctx, "/r.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if _, err := f.WriteAt([]byte("x"), 0); !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("WriteAt on read-open file = %v, want fs.ErrPermission", err)
	}
}
