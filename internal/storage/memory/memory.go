// Package memory provides an in-process implementation of storage.Store.
// Source lines are indexed by entity and by (entity, account) as they are
// added, so the engine's per-account lookups avoid full scans.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/mmynk/prepaidrecon/internal/matcher"
	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store keeps everything in maps guarded by a single RWMutex.
type Store struct {
	mu sync.RWMutex

	schedule lineIndex[models.ScheduleLine]
	tb       lineIndex[models.TrialBalanceLine]
	working  lineIndex[models.WorkingLine]

	recs      map[string]*models.Reconciliation
	liveByKey map[models.LineKey]string

	adjustments map[string]*models.AdjustmentEntry
	adjOrder    []string
	approvals   map[string][]*models.ApprovalEvent

	tolerances []models.ToleranceRule
	periods    map[string]models.FiscalPeriod

	users        map[string]*models.User
	usersByEmail map[string]string

	audit []*models.AuditEntry
}

// New returns an empty store.
func New() *Store {
	return &Store{
		schedule:     newLineIndex[models.ScheduleLine](),
		tb:           newLineIndex[models.TrialBalanceLine](),
		working:      newLineIndex[models.WorkingLine](),
		recs:         make(map[string]*models.Reconciliation),
		liveByKey:    make(map[models.LineKey]string),
		adjustments:  make(map[string]*models.AdjustmentEntry),
		approvals:    make(map[string][]*models.ApprovalEvent),
		periods:      make(map[string]models.FiscalPeriod),
		users:        make(map[string]*models.User),
		usersByEmail: make(map[string]string),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

type lineIndex[L models.Line] struct {
	lines           []L
	byEntity        map[string][]int
	byEntityAccount map[models.LineKey][]int
}

func newLineIndex[L models.Line]() lineIndex[L] {
	return lineIndex[L]{
		byEntity:        make(map[string][]int),
		byEntityAccount: make(map[models.LineKey][]int),
	}
}

func (ix *lineIndex[L]) add(lines []L) {
	for _, l := range lines {
		k := l.LineKey()
		i := len(ix.lines)
		ix.lines = append(ix.lines, l)
		ix.byEntity[k.EntityID] = append(ix.byEntity[k.EntityID], i)
		ek := models.LineKey{EntityID: k.EntityID, Account: k.Account}
		ix.byEntityAccount[ek] = append(ix.byEntityAccount[ek], i)
	}
}

func (ix *lineIndex[L]) query(filter models.LineKey) []L {
	filter = filter.Normalize()

	var candidates []int
	switch {
	case filter.EntityID != "" && filter.Account != "":
		candidates = ix.byEntityAccount[models.LineKey{EntityID: filter.EntityID, Account: filter.Account}]
	case filter.EntityID != "":
		candidates = ix.byEntity[filter.EntityID]
	default:
		return matcher.Filter(ix.lines, filter)
	}

	out := make([]L, 0, len(candidates))
	for _, i := range candidates {
		if matcher.MatchesAccount(ix.lines[i].LineKey(), filter) {
			out = append(out, ix.lines[i])
		}
	}
	return out
}

// ScheduleLines implements storage.LineStore.
func (s *Store) ScheduleLines(ctx context.Context, filter models.LineKey) ([]models.ScheduleLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedule.query(filter), nil
}

// TrialBalanceLines implements storage.LineStore.
func (s *Store) TrialBalanceLines(ctx context.Context, filter models.LineKey) ([]models.TrialBalanceLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tb.query(filter), nil
}

// WorkingLines implements storage.LineStore.
func (s *Store) WorkingLines(ctx context.Context, filter models.LineKey) ([]models.WorkingLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.working.query(filter), nil
}

// AddScheduleLines implements storage.LineStore.
func (s *Store) AddScheduleLines(ctx context.Context, lines []models.ScheduleLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range lines {
		if lines[i].ID == "" {
			lines[i].ID = uuid.New().String()
		}
	}
	s.schedule.add(lines)
	return nil
}

// AddTrialBalanceLines implements storage.LineStore.
func (s *Store) AddTrialBalanceLines(ctx context.Context, lines []models.TrialBalanceLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range lines {
		if lines[i].ID == "" {
			lines[i].ID = uuid.New().String()
		}
	}
	s.tb.add(lines)
	return nil
}

// AddWorkingLines implements storage.LineStore.
func (s *Store) AddWorkingLines(ctx context.Context, lines []models.WorkingLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range lines {
		if lines[i].ID == "" {
			lines[i].ID = uuid.New().String()
		}
	}
	s.working.add(lines)
	return nil
}

// GetReconciliation implements storage.ReconciliationStore.
func (s *Store) GetReconciliation(ctx context.Context, id string) (*models.Reconciliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, fmt.Errorf("reconciliation %s: %w", id, storage.ErrNotFound)
	}
	return rec.Clone(), nil
}

// FindReconciliation implements storage.ReconciliationStore.
func (s *Store) FindReconciliation(ctx context.Context, key models.LineKey) (*models.Reconciliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.liveByKey[tripleOf(key)]
	if !ok {
		return nil, fmt.Errorf("reconciliation for %s/%s/%s: %w", key.EntityID, key.PeriodID, key.Account, storage.ErrNotFound)
	}
	return s.recs[id].Clone(), nil
}

// ListReconciliations implements storage.ReconciliationStore.
func (s *Store) ListReconciliations(ctx context.Context, f storage.ReconciliationFilter) ([]*models.Reconciliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Reconciliation
	for _, rec := range s.recs {
		if rec.IsDeleted() && !f.IncludeDeleted {
			continue
		}
		if !storage.InScope(f.EntityIDs, rec.EntityID) {
			continue
		}
		if (f.EntityID != "" && rec.EntityID != f.EntityID) ||
			(f.PeriodID != "" && rec.PeriodID != f.PeriodID) ||
			(f.FiscalYear != "" && rec.FiscalYear != f.FiscalYear) ||
			(f.Account != "" && rec.PrepaidAccount != f.Account) ||
			(f.Status != "" && rec.Status != f.Status) {
			continue
		}
		out = append(out, rec.Clone())
	}

	slices.SortFunc(out, func(a, b *models.Reconciliation) int {
		if c := cmp.Compare(a.EntityID, b.EntityID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.PeriodID, b.PeriodID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.PrepaidAccount, b.PrepaidAccount); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// InsertReconciliation implements storage.ReconciliationStore.
func (s *Store) InsertReconciliation(ctx context.Context, rec *models.Reconciliation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if _, exists := s.recs[rec.ID]; exists {
		return fmt.Errorf("reconciliation %s already exists: %w", rec.ID, storage.ErrVersionConflict)
	}
	key := tripleOf(rec.Key())
	if !rec.IsDeleted() {
		if _, taken := s.liveByKey[key]; taken {
			return fmt.Errorf("live reconciliation exists for %s/%s/%s: %w", key.EntityID, key.PeriodID, key.Account, storage.ErrVersionConflict)
		}
		s.liveByKey[key] = rec.ID
	}
	s.recs[rec.ID] = rec.Clone()
	return nil
}

// ReplaceReconciliation implements storage.ReconciliationStore.
func (s *Store) ReplaceReconciliation(ctx context.Context, rec *models.Reconciliation, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.recs[rec.ID]
	if !ok {
		return fmt.Errorf("reconciliation %s: %w", rec.ID, storage.ErrNotFound)
	}
	if cur.Version != expectedVersion {
		return fmt.Errorf("reconciliation %s at version %d, expected %d: %w", rec.ID, cur.Version, expectedVersion, storage.ErrVersionConflict)
	}

	key := tripleOf(cur.Key())
	if s.liveByKey[key] == cur.ID {
		delete(s.liveByKey, key)
	}
	if !rec.IsDeleted() {
		s.liveByKey[tripleOf(rec.Key())] = rec.ID
	}
	s.recs[rec.ID] = rec.Clone()
	return nil
}

// GetAdjustment implements storage.AdjustmentStore.
func (s *Store) GetAdjustment(ctx context.Context, id string) (*models.AdjustmentEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	adj, ok := s.adjustments[id]
	if !ok {
		return nil, fmt.Errorf("adjustment %s: %w", id, storage.ErrNotFound)
	}
	return adj.Clone(), nil
}

// ListAdjustments implements storage.AdjustmentStore.
func (s *Store) ListAdjustments(ctx context.Context, f storage.AdjustmentFilter) ([]*models.AdjustmentEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AdjustmentEntry
	for _, id := range s.adjOrder {
		adj := s.adjustments[id]
		if adj.IsDeleted() || !storage.InScope(f.EntityIDs, adj.EntityID) {
			continue
		}
		if (f.ReconciliationID != "" && adj.ReconciliationID != f.ReconciliationID) ||
			(f.EntityID != "" && adj.EntityID != f.EntityID) ||
			(f.Status != "" && adj.Status != f.Status) ||
			(f.MakerID != "" && adj.MakerID != f.MakerID) {
			continue
		}
		out = append(out, adj.Clone())
	}
	return out, nil
}

// InsertAdjustment implements storage.AdjustmentStore.
func (s *Store) InsertAdjustment(ctx context.Context, adj *models.AdjustmentEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if adj.ID == "" {
		adj.ID = uuid.New().String()
	}
	if _, exists := s.adjustments[adj.ID]; exists {
		return fmt.Errorf("adjustment %s already exists", adj.ID)
	}
	s.adjustments[adj.ID] = adj.Clone()
	s.adjOrder = append(s.adjOrder, adj.ID)
	return nil
}

// ReplaceAdjustment implements storage.AdjustmentStore.
func (s *Store) ReplaceAdjustment(ctx context.Context, adj *models.AdjustmentEntry, expected models.AdjustmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.adjustments[adj.ID]
	if !ok {
		return fmt.Errorf("adjustment %s: %w", adj.ID, storage.ErrNotFound)
	}
	if cur.Status != expected {
		return fmt.Errorf("adjustment %s is %s, expected %s: %w", adj.ID, cur.Status, expected, storage.ErrStatusConflict)
	}
	s.adjustments[adj.ID] = adj.Clone()
	return nil
}

// AppendApproval implements storage.AdjustmentStore.
func (s *Store) AppendApproval(ctx context.Context, ev *models.ApprovalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	c := *ev
	s.approvals[ev.AdjustmentID] = append(s.approvals[ev.AdjustmentID], &c)
	return nil
}

// ListApprovals implements storage.AdjustmentStore.
func (s *Store) ListApprovals(ctx context.Context, adjustmentID string) ([]*models.ApprovalEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.approvals[adjustmentID]
	out := make([]*models.ApprovalEvent, 0, len(events))
	for _, ev := range events {
		c := *ev
		out = append(out, &c)
	}
	return out, nil
}

// ListToleranceRules implements storage.SettingsStore.
func (s *Store) ListToleranceRules(ctx context.Context) ([]models.ToleranceRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ToleranceRule
	for _, r := range s.tolerances {
		if r.DeletedAt == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// PutToleranceRule implements storage.SettingsStore.
func (s *Store) PutToleranceRule(ctx context.Context, rule models.ToleranceRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	for i := range s.tolerances {
		if s.tolerances[i].ID == rule.ID {
			s.tolerances[i] = rule
			return nil
		}
	}
	s.tolerances = append(s.tolerances, rule)
	return nil
}

// GetPeriod implements storage.SettingsStore.
func (s *Store) GetPeriod(ctx context.Context, id string) (*models.FiscalPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.periods[id]
	if !ok {
		return nil, fmt.Errorf("period %s: %w", id, storage.ErrNotFound)
	}
	return &p, nil
}

// PutPeriod implements storage.SettingsStore.
func (s *Store) PutPeriod(ctx context.Context, p models.FiscalPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods[p.ID] = p
	return nil
}

// CreateUser implements storage.UserStore.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.usersByEmail[user.Email]; taken {
		return fmt.Errorf("failed to create user: email %s already registered", user.Email)
	}
	c := *user
	c.EntityIDs = slices.Clone(user.EntityIDs)
	s.users[user.ID] = &c
	s.usersByEmail[user.Email] = user.ID
	return nil
}

// GetUserByEmail implements storage.UserStore.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, nil
	}
	c := *s.users[id]
	return &c, nil
}

// GetUserByID implements storage.UserStore.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

// AppendAuditEntry implements storage.AuditStore.
func (s *Store) AppendAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	c := *entry
	s.audit = append(s.audit, &c)
	return nil
}

// ListAuditEntries implements storage.AuditStore.
func (s *Store) ListAuditEntries(ctx context.Context, resource, resourceID string) ([]*models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AuditEntry
	for _, e := range s.audit {
		if e.Resource == resource && e.ResourceID == resourceID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func tripleOf(k models.LineKey) models.LineKey {
	k = k.Normalize()
	k.FiscalYear = ""
	return k
}
