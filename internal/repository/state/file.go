package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/config"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	pb "github.com/h0tp-ftw/alarm-audio-detector/internal/pb/v1"
)

// Repository defines persistence operations for the detector state.
type Repository interface {
	Load(ctx context.Context) (*alarm.State, error)
	Save(ctx context.Context, state *alarm.State) error
}

// FileRepository persists the detector state to a JSON file on disk.
// The document is the protojson rendering of the same struct served over gRPC,
// so the file and the API never disagree on field names.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

// ErrNotFound is returned when the state file does not exist yet.
var ErrNotFound = errors.New("state not found")

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the location of the state file.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the state from disk.
func (r *FileRepository) Load(_ context.Context) (*alarm.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	state, err := pb.StateFromStruct(&document)
	if err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	return state, nil
}

// Save writes the state to disk. The file is replaced atomically so that
// concurrent readers never observe a truncated document.
func (r *FileRepository) Save(_ context.Context, state *alarm.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	marshalOptions := protojson.MarshalOptions{
		Multiline:       true,
		EmitUnpopulated: true,
	}

	data, err := marshalOptions.Marshal(pb.StateToStruct(state))
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary state file: %w", err)
	}

	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // Already renamed on success.

	if _, err = tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec // The write error is more relevant.

		return fmt.Errorf("write state file: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	if err = os.Chmod(tmpName, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	if err = os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}
