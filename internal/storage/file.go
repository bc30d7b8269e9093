package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yourname/focustracker/internal"
)

type sessionRecord struct {
	Seq uint64 `json:"seq"`
	internal.Session
}

type eventRecord struct {
	Seq uint64 `json:"seq"`
	internal.Event
}

// eventKey is the (user, session) compound key events are listed by.
type eventKey struct {
	userID    string
	sessionID string
}

type FileStorage struct {
	sessions      map[string]*sessionRecord   // id -> session
	userSessions  map[string][]*sessionRecord // userID -> sessions, newest first
	events        map[string]*eventRecord     // id -> event
	sessionEvents map[eventKey][]*eventRecord // (user, session) -> events, oldest first
	users         map[string]*internal.User   // id -> user
	userEmails    map[string]string           // email -> id
	seq           uint64
	mu            sync.RWMutex

	sessionsFile string
	eventsFile   string
	usersFile    string

	saveSessionsChan chan struct{}
	saveEventsChan   chan struct{}
	saveUsersChan    chan struct{}
	shutdownChan     chan struct{}
	saveDelay        time.Duration
	workers          sync.WaitGroup
	closeOnce        sync.Once

	logger internal.Logger
}

func NewFileStorage(sessionsFile, eventsFile, usersFile string, logger internal.Logger) (*FileStorage, error) {
	s := &FileStorage{
		sessions:         make(map[string]*sessionRecord),
		userSessions:     make(map[string][]*sessionRecord),
		events:           make(map[string]*eventRecord),
		sessionEvents:    make(map[eventKey][]*eventRecord),
		users:            make(map[string]*internal.User),
		userEmails:       make(map[string]string),
		sessionsFile:     sessionsFile,
		eventsFile:       eventsFile,
		usersFile:        usersFile,
		saveSessionsChan: make(chan struct{}, 1),
		saveEventsChan:   make(chan struct{}, 1),
		saveUsersChan:    make(chan struct{}, 1),
		shutdownChan:     make(chan struct{}),
		saveDelay:        500 * time.Millisecond,
		logger:           logger,
	}

	if err := s.loadSessions(); err != nil {
		logger.Errorf("storage: failed to load sessions: %v", err)
		return nil, err
	}
	if err := s.loadEvents(); err != nil {
		logger.Errorf("storage: failed to load events: %v", err)
		return nil, err
	}
	if err := s.loadUsers(); err != nil {
		logger.Errorf("storage: failed to load users: %v", err)
		return nil, err
	}

	s.workers.Add(3)
	go s.saveWorker("sessions", s.saveSessionsChan, s.saveSessions)
	go s.saveWorker("events", s.saveEventsChan, s.saveEvents)
	go s.saveWorker("users", s.saveUsersChan, s.saveUsers)

	return s, nil
}

// readJSONFile decodes path into v. A missing or empty file is not an error.
func readJSONFile(path string, v interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *FileStorage) loadSessions() error {
	var records []*sessionRecord
	if err := readJSONFile(s.sessionsFile, &records); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.sessions[r.ID] = r
		s.userSessions[r.UserID] = append(s.userSessions[r.UserID], r)
		s.seq = max(s.seq, r.Seq)
	}
	for userID := range s.userSessions {
		sort.Slice(s.userSessions[userID], func(i, j int) bool {
			return newerSession(s.userSessions[userID][i], s.userSessions[userID][j])
		})
	}
	return nil
}

func (s *FileStorage) loadEvents() error {
	var records []*eventRecord
	if err := readJSONFile(s.eventsFile, &records); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.Meta == nil {
			r.Meta = internal.Meta{}
		}
		s.events[r.ID] = r
		key := eventKey{userID: r.UserID, sessionID: r.SessionID}
		s.sessionEvents[key] = append(s.sessionEvents[key], r)
		s.seq = max(s.seq, r.Seq)
	}
	for key := range s.sessionEvents {
		sort.Slice(s.sessionEvents[key], func(i, j int) bool {
			return earlierEvent(s.sessionEvents[key][i], s.sessionEvents[key][j])
		})
	}
	return nil
}

func (s *FileStorage) loadUsers() error {
	var users []*internal.User
	if err := readJSONFile(s.usersFile, &users); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		s.users[u.ID] = u
		s.userEmails[normalizeEmail(u.Email)] = u.ID
	}
	return nil
}

func newerSession(a, b *sessionRecord) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.Seq > b.Seq
}

func earlierEvent(a, b *eventRecord) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Seq < b.Seq
}

func atomicWriteFileJSON(filePath string, data interface{}) error {
	tempFile := filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, filePath)
}

func (s *FileStorage) saveSessions() error {
	s.mu.RLock()
	records := make([]*sessionRecord, 0, len(s.sessions))
	for _, r := range s.sessions {
		records = append(records, r)
	}
	s.mu.RUnlock()
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })

	return atomicWriteFileJSON(s.sessionsFile, records)
}

func (s *FileStorage) saveEvents() error {
	s.mu.RLock()
	records := make([]*eventRecord, 0, len(s.events))
	for _, r := range s.events {
		copied := *r
		records = append(records, &copied)
	}
	s.mu.RUnlock()
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })

	return atomicWriteFileJSON(s.eventsFile, records)
}

func (s *FileStorage) saveUsers() error {
	s.mu.RLock()
	users := make([]*internal.User, 0, len(s.users))
	for _, u := range s.users {
		copied := *u
		users = append(users, &copied)
	}
	s.mu.RUnlock()
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })

	return atomicWriteFileJSON(s.usersFile, users)
}

// saveWorker debounces write triggers: the file is rewritten once no trigger
// has arrived for saveDelay.
func (s *FileStorage) saveWorker(name string, trigger <-chan struct{}, save func() error) {
	defer s.workers.Done()
	timer := time.NewTimer(s.saveDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-trigger:
			timer.Reset(s.saveDelay)
		case <-timer.C:
			if err := save(); err != nil {
				s.logger.Errorf("storage: error saving %s: %v", name, err)
			}
		case <-s.shutdownChan:
			return
		}
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Close stops the save workers and writes every file synchronously.
func (s *FileStorage) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.shutdownChan)
		s.workers.Wait()
		err = errors.Join(s.saveSessions(), s.saveEvents(), s.saveUsers())
	})
	return err
}

// --- SessionRepository ---
func (s *FileStorage) CreateSession(ctx context.Context, owner internal.Owner, session *internal.Session) error {
	if err := checkSessionWrite(owner, session); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return internal.Rejected("duplicate session id")
	}

	s.seq++
	rec := &sessionRecord{Seq: s.seq, Session: cloneSession(session)}
	s.sessions[rec.ID] = rec
	list := s.userSessions[rec.UserID]
	i := slices.IndexFunc(list, func(existing *sessionRecord) bool { return newerSession(rec, existing) })
	if i < 0 {
		i = len(list)
	}
	s.userSessions[rec.UserID] = slices.Insert(list, i, rec)
	notify(s.saveSessionsChan)
	return nil
}

func (s *FileStorage) ListSessions(ctx context.Context, owner internal.Owner) ([]internal.Session, error) {
	if err := owner.Check(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.userSessions[owner.ID()]
	sessions := make([]internal.Session, len(records))
	for i, r := range records {
		sessions[i] = cloneSession(&r.Session)
	}
	return sessions, nil
}

// ownedSession returns the record only when it exists and belongs to owner.
// Callers must hold s.mu.
func (s *FileStorage) ownedSession(owner internal.Owner, id string) (*sessionRecord, bool) {
	rec, ok := s.sessions[id]
	if !ok || !owner.Owns(rec.UserID) {
		return nil, false
	}
	return rec, true
}

func (s *FileStorage) GetSession(ctx context.Context, owner internal.Owner, id string) (*internal.Session, error) {
	if err := owner.Check(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.ownedSession(owner, id)
	if !ok {
		return nil, internal.NotFound("session not found")
	}
	session := cloneSession(&rec.Session)
	return &session, nil
}

func (s *FileStorage) DeleteSession(ctx context.Context, owner internal.Owner, id string) (*internal.Session, error) {
	if err := owner.Check(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.ownedSession(owner, id)
	if !ok {
		return nil, internal.NotFound("session not found")
	}
	delete(s.sessions, id)
	s.userSessions[rec.UserID] = slices.DeleteFunc(s.userSessions[rec.UserID], func(r *sessionRecord) bool { return r == rec })
	if len(s.userSessions[rec.UserID]) == 0 {
		delete(s.userSessions, rec.UserID)
	}
	notify(s.saveSessionsChan)

	session := cloneSession(&rec.Session)
	return &session, nil
}

// --- EventRepository ---
func (s *FileStorage) CreateEvent(ctx context.Context, owner internal.Owner, event *internal.Event) error {
	if err := checkEventWrite(owner, event); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ownedSession(owner, event.SessionID); !ok {
		return internal.ErrSessionNotOwned
	}
	if _, exists := s.events[event.ID]; exists {
		return internal.Rejected("duplicate event id")
	}

	s.seq++
	rec := &eventRecord{Seq: s.seq, Event: cloneEvent(event)}
	s.events[rec.ID] = rec
	key := eventKey{userID: rec.UserID, sessionID: rec.SessionID}
	list := s.sessionEvents[key]
	i := slices.IndexFunc(list, func(existing *eventRecord) bool { return earlierEvent(rec, existing) })
	if i < 0 {
		i = len(list)
	}
	s.sessionEvents[key] = slices.Insert(list, i, rec)
	notify(s.saveEventsChan)
	return nil
}

func (s *FileStorage) ListEvents(ctx context.Context, owner internal.Owner, sessionID string) ([]internal.Event, error) {
	if err := owner.Check(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.sessionEvents[eventKey{userID: owner.ID(), sessionID: sessionID}]
	events := make([]internal.Event, len(records))
	for i, r := range records {
		events[i] = cloneEvent(&r.Event)
	}
	return events, nil
}

func (s *FileStorage) ResolveEvent(ctx context.Context, owner internal.Owner, id string) (*internal.Event, error) {
	if err := owner.Check(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.events[id]
	if !ok || !owner.Owns(rec.UserID) {
		return nil, internal.NotFound("event not found")
	}
	if !rec.Resolved {
		rec.Resolved = true
		rec.UpdatedAt = time.Now().UTC()
		notify(s.saveEventsChan)
	}
	event := cloneEvent(&rec.Event)
	return &event, nil
}

// --- MaintenanceRepository ---
func (s *FileStorage) UpsertUser(ctx context.Context, u *internal.User) error {
	email := normalizeEmail(u.Email)
	if email == "" {
		return internal.Rejected("email is required")
	}
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.userEmails[email]; ok {
		existing := s.users[id]
		existing.Name = u.Name
		existing.IsActive = u.IsActive
		existing.UpdatedAt = now
		*u = *existing
	} else {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		if _, taken := s.users[u.ID]; taken {
			return internal.Rejected("duplicate user id")
		}
		u.Email = email
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		u.UpdatedAt = now
		stored := *u
		s.users[u.ID] = &stored
		s.userEmails[email] = u.ID
	}
	notify(s.saveUsersChan)
	return nil
}

func (s *FileStorage) FindUsersByEmail(ctx context.Context, emails []string) ([]internal.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := []internal.User{}
	for _, email := range emails {
		if id, ok := s.userEmails[normalizeEmail(email)]; ok {
			users = append(users, *s.users[id])
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return slices.CompactFunc(users, func(a, b internal.User) bool { return a.ID == b.ID }), nil
}

func (s *FileStorage) PurgeUsers(ctx context.Context, userIDs []string) (Counts, error) {
	var deleted Counts
	if len(userIDs) == 0 {
		return deleted, nil
	}
	purge := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		purge[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.events {
		if purge[rec.UserID] {
			delete(s.events, id)
			deleted.Events++
		}
	}
	for key := range s.sessionEvents {
		if purge[key.userID] {
			delete(s.sessionEvents, key)
		}
	}
	for id, rec := range s.sessions {
		if purge[rec.UserID] {
			delete(s.sessions, id)
			deleted.Sessions++
		}
	}
	for id := range purge {
		delete(s.userSessions, id)
		if u, ok := s.users[id]; ok {
			delete(s.userEmails, normalizeEmail(u.Email))
			delete(s.users, id)
			deleted.Users++
		}
	}
	notify(s.saveEventsChan)
	notify(s.saveSessionsChan)
	notify(s.saveUsersChan)
	return deleted, nil
}

func (s *FileStorage) Count(ctx context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Users:    int64(len(s.users)),
		Sessions: int64(len(s.sessions)),
		Events:   int64(len(s.events)),
	}, nil
}

// --- Compile-time assertions ---
var _ SessionRepository = (*FileStorage)(nil)
var _ EventRepository = (*FileStorage)(nil)
var _ MaintenanceRepository = (*FileStorage)(nil)
