package ingest

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tablechat/backend/internal/models"
	"github.com/tablechat/backend/internal/qerr"
	"github.com/tablechat/backend/internal/store"
)

// StatusEvent describes an ingestion state change pushed to listeners.
type StatusEvent struct {
	FileID   string            `json:"fileId"`
	Status   models.FileStatus `json:"status"`
	RowCount int64             `json:"rowCount,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Notifier receives ingestion status events. The websocket hub implements
// this; a nil notifier disables push.
type Notifier interface {
	Publish(evt StatusEvent)
}

// Manager runs the ingestion pipeline: parse, infer, materialize. Each
// upload is processed in its own goroutine so a slow file never blocks
// unrelated uploads.
type Manager struct {
	mu    sync.RWMutex
	files map[string]*models.UploadedFile

	mat        *store.Materializer
	sampleRows int
	notifier   Notifier
}

// NewManager creates an ingestion manager.
func NewManager(mat *store.Materializer, sampleRows int, notifier Notifier) *Manager {
	if sampleRows <= 0 {
		sampleRows = 10000
	}
	return &Manager{
		files:      make(map[string]*models.UploadedFile),
		mat:        mat,
		sampleRows: sampleRows,
		notifier:   notifier,
	}
}

// Ingest registers a new upload and starts asynchronous processing. The
// returned UploadedFile is a snapshot; poll Get or subscribe to the notifier
// for progress.
func (m *Manager) Ingest(originalName string, r io.Reader) (models.UploadedFile, error) {
	var buf bytes.Buffer
	size, err := io.Copy(&buf, r)
	if err != nil {
		return models.UploadedFile{}, qerr.Wrap(qerr.KindUnsupportedFormat, "failed to read upload", err)
	}

	file := &models.UploadedFile{
		ID:         uuid.New().String(),
		Name:       originalName,
		Size:       size,
		Status:     models.StatusUploading,
		UploadedAt: time.Now(),
	}

	m.mu.Lock()
	m.files[file.ID] = file
	m.mu.Unlock()

	// The body is already read at this point, so the uploading state is
	// transient; publish it anyway so subscribers see the full lifecycle.
	m.publish(file.ID)
	m.setStatus(file.ID, models.StatusProcessing)

	go m.process(file.ID, buf.Bytes())

	return m.snapshot(file.ID), nil
}

// process runs the full pipeline for one file.
func (m *Manager) process(fileID string, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Ingest %s] PANIC recovered: %v\n", shortID(fileID), r)
			m.setError(fileID, fmt.Sprintf("ingestion panicked: %v", r))
		}
	}()

	start := time.Now()
	fmt.Printf("[Ingest %s] Starting ingestion (%d bytes)\n", shortID(fileID), len(data))

	parsed, err := ParseTable(bytes.NewReader(data))
	if err != nil {
		m.setError(fileID, err.Error())
		return
	}

	cols, err := InferColumns(parsed.Header, parsed.Rows, m.sampleRows)
	if err != nil {
		m.setError(fileID, err.Error())
		return
	}

	ts, err := m.mat.Materialize(fileID, cols, parsed.Rows)
	if err != nil {
		m.setError(fileID, err.Error())
		return
	}

	m.mu.Lock()
	if file, ok := m.files[fileID]; ok {
		file.Status = models.StatusCompleted
		file.RowCount = ts.RowCount
		file.ColumnCount = len(ts.Columns)
	}
	m.mu.Unlock()

	m.publish(fileID)
	fmt.Printf("[Ingest %s] Completed: %d rows, %d columns in %v\n",
		shortID(fileID), ts.RowCount, len(ts.Columns), time.Since(start))
}

// Get returns a snapshot of the file's metadata.
func (m *Manager) Get(fileID string) (models.UploadedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[fileID]
	if !ok {
		return models.UploadedFile{}, qerr.Newf(qerr.KindNotFound, "file not found: %s", fileID)
	}
	return *file, nil
}

// Expire drops the file's table, registry entry, and metadata. Invoked by
// the external lifecycle manager; the core has no deletion policy of its own.
func (m *Manager) Expire(fileID string) error {
	m.mu.RLock()
	_, ok := m.files[fileID]
	m.mu.RUnlock()

	if !ok {
		return qerr.Newf(qerr.KindNotFound, "file not found: %s", fileID)
	}

	// Drop first: if it fails the metadata stays, so the expiry can be
	// retried instead of orphaning the table.
	if err := m.mat.Drop(fileID); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.files, fileID)
	m.mu.Unlock()

	fmt.Printf("[Ingest %s] Expired\n", shortID(fileID))
	return nil
}

func (m *Manager) setStatus(fileID string, status models.FileStatus) {
	m.mu.Lock()
	if file, ok := m.files[fileID]; ok {
		file.Status = status
	}
	m.mu.Unlock()
	m.publish(fileID)
}

func (m *Manager) setError(fileID, msg string) {
	m.mu.Lock()
	if file, ok := m.files[fileID]; ok {
		file.Status = models.StatusError
		file.Error = msg
	}
	m.mu.Unlock()
	m.publish(fileID)
	fmt.Printf("[Ingest %s] Error: %s\n", shortID(fileID), msg)
}

func (m *Manager) snapshot(fileID string) models.UploadedFile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if file, ok := m.files[fileID]; ok {
		return *file
	}
	return models.UploadedFile{}
}

func (m *Manager) publish(fileID string) {
	if m.notifier == nil {
		return
	}
	m.mu.RLock()
	file, ok := m.files[fileID]
	var evt StatusEvent
	if ok {
		evt = StatusEvent{
			FileID:   file.ID,
			Status:   file.Status,
			RowCount: file.RowCount,
			Error:    file.Error,
		}
	}
	m.mu.RUnlock()
	if ok {
		m.notifier.Publish(evt)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
