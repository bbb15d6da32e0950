package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
)

// memMappingStore implements domain.MappingStore in memory
type memMappingStore struct {
	mu       sync.Mutex
	mappings map[string]domain.CategoryMapping
	getErr   error
}

func newMemMappingStore() *memMappingStore {
	return &memMappingStore{mappings: make(map[string]domain.CategoryMapping)}
}

func (s *memMappingStore) Get(appID string) (*domain.CategoryMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	m, ok := s.mappings[appID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *memMappingStore) Upsert(m domain.CategoryMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[m.AppID] = m
	return nil
}

func (s *memMappingStore) GetAll() ([]domain.CategoryMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CategoryMapping, 0, len(s.mappings))
	for _, m := range s.mappings {
		out = append(out, m)
	}
	return out, nil
}

func (s *memMappingStore) GetByCategory(c domain.Category) ([]domain.CategoryMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CategoryMapping
	for _, m := range s.mappings {
		if m.Category == c {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMappingStore) Delete(appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mappings, appID)
	return nil
}

// memAgreementStore implements domain.AgreementStore in memory
type memAgreementStore struct {
	mu         sync.Mutex
	agreements map[string]domain.Agreement
	audits     []domain.AuditEntry
}

func newMemAgreementStore() *memAgreementStore {
	return &memAgreementStore{agreements: make(map[string]domain.Agreement)}
}

func (s *memAgreementStore) Insert(a domain.Agreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agreements[a.ID] = a
	return nil
}

func (s *memAgreementStore) Update(a domain.Agreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agreements[a.ID] = a
	return nil
}

func (s *memAgreementStore) Get(id string) (*domain.Agreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agreements[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *memAgreementStore) GetActive() ([]domain.Agreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Agreement
	for _, a := range s.agreements {
		if a.Status == domain.AgreementActive {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memAgreementStore) AppendAudit(e domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, e)
	return nil
}

func (s *memAgreementStore) AuditFor(agreementID string) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range s.audits {
		if e.AgreementID == agreementID {
			out = append(out, e)
		}
	}
	return out, nil
}

// memInterventionLog implements domain.InterventionLog in memory
type memInterventionLog struct {
	mu      sync.Mutex
	records []domain.InterventionRecord
}

func (l *memInterventionLog) Append(r domain.InterventionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
	return nil
}

func (l *memInterventionLog) LastForChannel(channel string) (*domain.InterventionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.records) - 1; i >= 0; i-- {
		if l.records[i].Channel == channel {
			r := l.records[i]
			return &r, nil
		}
	}
	return nil, nil
}

func (l *memInterventionLog) Recent(limit int) ([]domain.InterventionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.InterventionRecord, 0, limit)
	for i := len(l.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.records[i])
	}
	return out, nil
}

func (l *memInterventionLog) DeleteOlderThan(t time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.records[:0]
	for _, r := range l.records {
		if !r.At.Before(t) {
			kept = append(kept, r)
		}
	}
	l.records = kept
	return nil
}

// memSampleStore implements domain.SampleStore in memory
type memSampleStore struct {
	mu      sync.Mutex
	samples []domain.UsageSample
}

func (s *memSampleStore) Record(sample domain.UsageSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

func (s *memSampleStore) TotalsBetween(start, end time.Time) (map[string]time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := make(map[string]time.Duration)
	for _, sm := range s.samples {
		if sm.WindowStart.Before(end) && sm.WindowEnd.After(start) {
			totals[sm.AppID] += sm.Foreground
		}
	}
	return totals, nil
}

func (s *memSampleStore) DeleteOlderThan(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.samples[:0]
	for _, sm := range s.samples {
		if !sm.WindowEnd.Before(t) {
			kept = append(kept, sm)
		}
	}
	s.samples = kept
	return nil
}

// fakeUsageSource implements domain.UsageSource for testing
type fakeUsageSource struct {
	permission bool
	foreground *domain.AppUsageInfo
	fgErr      error
	windowed   time.Duration
	dayTotals  map[string]map[string]time.Duration // day key -> app -> total
}

func (f *fakeUsageSource) HasPermission() bool { return f.permission }

func (f *fakeUsageSource) CurrentForegroundApp(ctx context.Context) (*domain.AppUsageInfo, error) {
	if f.fgErr != nil {
		return nil, f.fgErr
	}
	return f.foreground, nil
}

func (f *fakeUsageSource) SampleWindow(ctx context.Context, start, end time.Time) (time.Duration, error) {
	return f.windowed, nil
}

func (f *fakeUsageSource) AppTotals(ctx context.Context, start, end time.Time) (map[string]time.Duration, error) {
	if f.dayTotals == nil {
		return map[string]time.Duration{}, nil
	}
	key := start.Format("2006-01-02")
	totals, ok := f.dayTotals[key]
	if !ok {
		return map[string]time.Duration{}, nil
	}
	return totals, nil
}

// fakeOracle implements domain.DialogueOracle for testing
type fakeOracle struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	lastMsg string
	history [][]domain.DialogueTurn
}

func (f *fakeOracle) Send(ctx context.Context, systemPrompt string, history []domain.DialogueTurn, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastMsg = message
	f.history = append(f.history, history)
	if f.err != nil {
		return "", f.err
	}
	if f.reply == "" {
		return "okay", nil
	}
	return f.reply, nil
}

// fakeSink implements domain.PresentationSink for testing
type fakeSink struct {
	mu       sync.Mutex
	messages []string
	actions  []domain.Action
}

func (f *fakeSink) PresentIntervention(action domain.Action, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// fakeController implements domain.SubjectController for testing
type fakeController struct {
	mu     sync.Mutex
	closed []string
	err    error
}

func (f *fakeController) CloseSubject(ctx context.Context, appID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, appID)
	return f.err
}
