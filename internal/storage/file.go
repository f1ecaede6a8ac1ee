package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"plantcare/internal/calendar"
	"plantcare/internal/care"
	logx "plantcare/pkg/logx"
)

const fileCompactEvery = 500

// fileStore keeps the working set in a memStore and persists every mutation.
//
// Files:
//   - <prefix>.snapshot.json (full state, rewritten on compaction)
//   - <prefix>.journal.jsonl (append-only mutations since the last snapshot)
//   - <prefix>.lock (held exclusively while the store is open)
//
// The working set lives in one process, so a second process opening the same
// prefix fails with ErrStoreLocked instead of writing a diverging journal.
type fileStore struct {
	*memStore
	log  logx.Logger
	lock *os.File

	wmu          sync.Mutex
	snapshotPath string
	journal      *os.File
	writes       int
}

const (
	opTask       = "task"
	opDeleteTask = "delete_task"
	opPlant      = "plant"
)

type journalRecord struct {
	Op    string      `json:"op"`
	Task  *care.Task  `json:"task,omitempty"`
	Plant *care.Plant `json:"plant,omitempty"`
	ID    string      `json:"id,omitempty"`
}

type snapshot struct {
	Tasks  []care.Task  `json:"tasks"`
	Plants []care.Plant `json:"plants"`
}

func openFile(cfg Config, norm calendar.Normalizer, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".snapshot.json"
	journalPath := prefix + ".journal.jsonl"

	lf, err := lockFile(prefix + ".lock")
	if err != nil {
		return nil, err
	}

	mem := newMemStore(norm)
	if err := loadSnapshot(snapPath, mem); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = unlockFile(lf)
		return nil, err
	}
	skipped, err := replayJournal(journalPath, mem)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = unlockFile(lf)
		return nil, err
	}
	if skipped > 0 {
		log.Warn("journal records skipped", logx.Int("count", skipped), logx.String("path", journalPath))
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = unlockFile(lf)
		return nil, err
	}

	return &fileStore{
		memStore:     mem,
		log:          log,
		lock:         lf,
		snapshotPath: snapPath,
		journal:      jf,
	}, nil
}

func (s *fileStore) CreateTask(ctx context.Context, d care.TaskDraft) (care.Task, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.journal == nil {
		return care.Task{}, ErrClosed
	}
	t, err := s.memStore.CreateTask(ctx, d)
	if err != nil {
		return care.Task{}, err
	}
	if err := s.appendLocked(journalRecord{Op: opTask, Task: &t}); err != nil {
		s.memStore.mu.Lock()
		s.memStore.deleteTaskLocked(t.ID)
		s.memStore.mu.Unlock()
		return care.Task{}, err
	}
	return t, nil
}

func (s *fileStore) CreateTaskUnless(ctx context.Context, guard care.TaskFilter, d care.TaskDraft) (care.Task, bool, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.journal == nil {
		return care.Task{}, false, ErrClosed
	}
	t, created, err := s.memStore.CreateTaskUnless(ctx, guard, d)
	if err != nil || !created {
		return t, false, err
	}
	if err := s.appendLocked(journalRecord{Op: opTask, Task: &t}); err != nil {
		s.memStore.mu.Lock()
		s.memStore.deleteTaskLocked(t.ID)
		s.memStore.mu.Unlock()
		return care.Task{}, false, err
	}
	return t, true, nil
}

func (s *fileStore) CompleteTask(ctx context.Context, id string) (care.Task, bool, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.journal == nil {
		return care.Task{}, false, ErrClosed
	}
	before, err := s.lookupTask(id)
	if err != nil {
		return care.Task{}, false, err
	}
	t, changed, err := s.memStore.CompleteTask(ctx, id)
	if err != nil || !changed {
		return t, changed, err
	}
	if err := s.appendLocked(journalRecord{Op: opTask, Task: &t}); err != nil {
		s.memStore.mu.Lock()
		s.memStore.putTaskLocked(before)
		s.memStore.mu.Unlock()
		return care.Task{}, false, err
	}
	return t, true, nil
}

func (s *fileStore) DeleteTask(ctx context.Context, id string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.journal == nil {
		return ErrClosed
	}
	if _, err := s.lookupTask(id); err != nil {
		return err
	}
	if err := s.appendLocked(journalRecord{Op: opDeleteTask, ID: id}); err != nil {
		return err
	}
	return s.memStore.DeleteTask(ctx, id)
}

func (s *fileStore) PutPlant(ctx context.Context, p care.Plant) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.journal == nil {
		return ErrClosed
	}
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return errEmptyPlantID
	}
	if err := s.appendLocked(journalRecord{Op: opPlant, Plant: &p}); err != nil {
		return err
	}
	return s.memStore.PutPlant(ctx, p)
}

func (s *fileStore) Close() error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = s.memStore.Close()
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return errors.Join(err, unlockFile(s.lock))
}

func (s *fileStore) lookupTask(id string) (care.Task, error) {
	s.memStore.mu.RLock()
	defer s.memStore.mu.RUnlock()
	t, ok := s.memStore.tasks[id]
	if !ok {
		return care.Task{}, care.TaskNotFound(id)
	}
	return t, nil
}

func (s *fileStore) appendLocked(r journalRecord) error {
	if err := json.NewEncoder(s.journal).Encode(r); err != nil {
		return err
	}
	s.writes++
	if s.writes%fileCompactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Warn("journal compact failed", logx.Err(err))
		}
	}
	return nil
}

// compactLocked writes a fresh snapshot and truncates the journal.
// The journal is only truncated after the snapshot rename succeeds.
func (s *fileStore) compactLocked() error {
	s.memStore.mu.RLock()
	snap := snapshot{
		Tasks:  make([]care.Task, 0, len(s.memStore.order)),
		Plants: make([]care.Plant, 0, len(s.memStore.plants)),
	}
	for _, id := range s.memStore.order {
		snap.Tasks = append(snap.Tasks, s.memStore.tasks[id])
	}
	for _, p := range s.memStore.plants {
		snap.Plants = append(snap.Plants, p)
	}
	s.memStore.mu.RUnlock()

	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(snap); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err = s.journal.Seek(0, io.SeekEnd)
	return err
}

func loadSnapshot(path string, mem *memStore) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var snap snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return err
	}
	for _, t := range snap.Tasks {
		if t.ID != "" {
			mem.putTaskLocked(t)
		}
	}
	for _, p := range snap.Plants {
		if p.ID != "" {
			mem.plants[p.ID] = p
		}
	}
	return nil
}

// replayJournal applies journal records in order and returns how many lines
// could not be decoded. A torn final line after a crash is skipped.
func replayJournal(path string, mem *memStore) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	skipped := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var r journalRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			skipped++
			continue
		}
		switch r.Op {
		case opTask:
			if r.Task != nil && r.Task.ID != "" {
				mem.putTaskLocked(*r.Task)
			}
		case opDeleteTask:
			mem.deleteTaskLocked(r.ID)
		case opPlant:
			if r.Plant != nil && r.Plant.ID != "" {
				mem.plants[r.Plant.ID] = *r.Plant
			}
		default:
			skipped++
		}
	}
	return skipped, sc.Err()
}
