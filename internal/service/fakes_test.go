package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/repository"
	"github.com/bdt-io/bdt/internal/workflow"
)

type fakeLookup struct {
	mu     sync.Mutex
	rows   map[int64]*models.Service
	nextID int64
	calls  int
}

func newFakeLookup(names ...string) *fakeLookup {
	l := &fakeLookup{rows: map[int64]*models.Service{}}
	for _, n := range names {
		l.nextID++
		l.rows[l.nextID] = &models.Service{ID: l.nextID, Name: n}
	}
	return l
}

func (l *fakeLookup) name(id int64) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.rows[id]; ok {
		return r.Name
	}
	return ""
}

func (l *fakeLookup) All(context.Context) ([]*models.Service, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	out := []*models.Service{}
	for _, r := range l.rows {
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (l *fakeLookup) List(ctx context.Context, q models.ListQuery) ([]*models.Service, int64, error) {
	all, _ := l.All(ctx)
	return all, int64(len(all)), nil
}

func (l *fakeLookup) GetByID(_ context.Context, id int64) (*models.Service, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *r
	return &c, nil
}

func (l *fakeLookup) Create(_ context.Context, name string) (*models.Service, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.rows {
		if strings.EqualFold(r.Name, name) {
			return nil, repository.ErrDuplicate
		}
	}
	l.nextID++
	r := &models.Service{ID: l.nextID, Name: name}
	l.rows[r.ID] = r
	c := *r
	return &c, nil
}

func (l *fakeLookup) Rename(_ context.Context, id int64, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Name = name
	return nil
}

func (l *fakeLookup) Delete(_ context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(l.rows, id)
	return nil
}

type fakeTickets struct {
	mu           sync.Mutex
	items        map[int64]*models.Ticket
	history      map[int64][]*models.StatusHistory
	nextID       int64
	intervenants *fakeLookup
	categories   *fakeCategories

	lastFilter    models.TicketFilter
	statusChanges []repository.StatusChange
	transfers     []repository.TransferChange
	conflict      bool
	cutoff        time.Time
	oldCount      int64
	byStatus      map[string]int64
	countedIDs    []int64
	serviceCounts map[int64]int64
}

func (f *fakeTickets) put(t *models.Ticket) *models.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == 0 {
		f.nextID++
		t.ID = f.nextID
	} else if t.ID > f.nextID {
		f.nextID = t.ID
	}
	f.items[t.ID] = t
	return t
}

func (f *fakeTickets) GetByID(_ context.Context, id int64) (*models.Ticket, error) {
	f.mu.Lock()
	t, ok := f.items[id]
	f.mu.Unlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *t
	c.ServiceIntervenantName = f.intervenants.name(c.ServiceIntervenantID)
	if c.CategoryID != nil && f.categories != nil {
		if cat, ok := f.categories.items[*c.CategoryID]; ok {
			name := cat.Name
			c.CategoryName = &name
		}
	}
	return &c, nil
}

func (f *fakeTickets) List(_ context.Context, flt models.TicketFilter) ([]*models.Ticket, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = flt
	out := []*models.Ticket{}
	for _, t := range f.items {
		if flt.CreatorID > 0 && t.CreatorID != flt.CreatorID {
			continue
		}
		if flt.ServiceIntervenantIDs != nil && !containsID(flt.ServiceIntervenantIDs, t.ServiceIntervenantID) {
			continue
		}
		if flt.Status != "" && t.Status != flt.Status {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (f *fakeTickets) Create(_ context.Context, t *models.Ticket) error {
	c := *t
	c.CreatedAt = time.Now()
	f.put(&c)
	t.ID = c.ID
	status := c.Status
	f.mu.Lock()
	f.history[c.ID] = append(f.history[c.ID], &models.StatusHistory{TicketID: c.ID, EventType: models.HistoryCreate, NewStatus: &status, ActorID: c.CreatorID})
	f.mu.Unlock()
	return nil
}

func (f *fakeTickets) Update(_ context.Context, t *models.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[t.ID]; !ok {
		return repository.ErrNotFound
	}
	c := *t
	f.items[t.ID] = &c
	return nil
}

func (f *fakeTickets) ApplyStatusChange(_ context.Context, sc repository.StatusChange) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusChanges = append(f.statusChanges, sc)
	t, ok := f.items[sc.TicketID]
	if !ok || f.conflict || t.Status != sc.From {
		return nil, repository.ErrConflict
	}
	t.Status = sc.To
	if sc.IntervenantID != nil {
		id := *sc.IntervenantID
		t.IntervenantID = &id
	}
	from, to := sc.From, sc.To
	f.history[t.ID] = append(f.history[t.ID], &models.StatusHistory{TicketID: t.ID, EventType: models.HistoryStatus, OldStatus: &from, NewStatus: &to, ActorID: sc.ActorID})
	if sc.Message == "" {
		return nil, nil
	}
	st := sc.To
	return &models.Message{ID: 99, TicketID: t.ID, AuthorID: sc.ActorID, Body: sc.Message, IsStatusChange: true, StatusType: &st, CreatedAt: sc.ChangedAt}, nil
}

func (f *fakeTickets) Transfer(_ context.Context, tc repository.TransferChange) (*models.Ticket, error) {
	f.mu.Lock()
	f.transfers = append(f.transfers, tc)
	t, ok := f.items[tc.TicketID]
	f.mu.Unlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	if tc.Mode == workflow.TransferAndKeep {
		origin := t.ID
		dup := &models.Ticket{
			CreatorID: t.CreatorID, ServiceID: t.ServiceID, ServiceIntervenantID: tc.TargetServiceID,
			Status: string(workflow.StatusOpen), Location: t.Location, Details: t.Details, OriginTicketID: &origin,
		}
		f.put(dup)
		c := *dup
		return &c, nil
	}
	f.mu.Lock()
	t.ServiceIntervenantID = tc.TargetServiceID
	t.Status = string(workflow.StatusOpen)
	t.CategoryID = nil
	t.IntervenantID = nil
	f.mu.Unlock()
	return nil, nil
}

func (f *fakeTickets) UpdateCategory(_ context.Context, ticketID int64, categoryID *int64, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.items[ticketID]
	if !ok {
		return repository.ErrNotFound
	}
	t.CategoryID = categoryID
	return nil
}

func (f *fakeTickets) History(_ context.Context, ticketID int64) ([]*models.StatusHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.StatusHistory{}, f.history[ticketID]...), nil
}

func (f *fakeTickets) CountOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.oldCount, nil
}

func (f *fakeTickets) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.oldCount, nil
}

func (f *fakeTickets) CountByStatus(_ context.Context, ids []int64) (map[string]int64, error) {
	f.countedIDs = ids
	return f.byStatus, nil
}

func (f *fakeTickets) CountAssignedTo(_ context.Context, userID int64, _ []string) (int64, error) {
	var n int64
	for _, t := range f.items {
		if t.IntervenantID != nil && *t.IntervenantID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeTickets) CountForService(_ context.Context, id int64) (int64, error) {
	return f.serviceCounts[id], nil
}

type fakeUsers struct {
	mu          sync.Mutex
	items       map[int64]*models.User
	perms       map[int64][]string
	nextID      int64
	loginIPs    map[int64]string
	defaultSvcs map[int64]*int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{items: map[int64]*models.User{}, perms: map[int64][]string{}, loginIPs: map[int64]string{}, defaultSvcs: map[int64]*int64{}}
}

func (f *fakeUsers) add(u *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == 0 {
		f.nextID++
		u.ID = f.nextID
	} else if u.ID > f.nextID {
		f.nextID = u.ID
	}
	f.items[u.ID] = u
	f.perms[u.ID] = append([]string{}, u.Permissions...)
	return u
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	c.Permissions = nil
	return &c, nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.items {
		if u.Username == strings.TrimSpace(username) {
			c := *u
			c.Permissions = nil
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) List(context.Context, models.ListQuery) ([]*models.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.User{}
	for _, u := range f.items {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	for _, existing := range f.items {
		if existing.Username == u.Username {
			f.mu.Unlock()
			return repository.ErrDuplicate
		}
	}
	f.mu.Unlock()
	f.add(u)
	return nil
}

func (f *fakeUsers) Update(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.items[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	c := *u
	if c.PasswordHash == "" {
		c.PasswordHash = old.PasswordHash
	}
	f.items[u.ID] = &c
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeUsers) Permissions(_ context.Context, id int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.perms[id]...), nil
}

func (f *fakeUsers) SetPermissions(_ context.Context, id int64, perms []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perms[id] = append([]string{}, perms...)
	return nil
}

func (f *fakeUsers) RecordLogin(_ context.Context, id int64, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginIPs[id] = ip
	return nil
}

func (f *fakeUsers) SetDefaultService(_ context.Context, id int64, serviceID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultSvcs[id] = serviceID
	return nil
}

func (f *fakeUsers) ListWithServicePermissions(context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.User{}
	for id, u := range f.items {
		if workflow.CanManageTickets(f.perms[id]) {
			c := *u
			c.Permissions = append([]string{}, f.perms[id]...)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

type fakeCategories struct {
	items  map[int64]*models.Category
	nextID int64
	// used marks categories referenced by tickets.
	used map[int64]bool
}

func (f *fakeCategories) List(_ context.Context, q models.ListQuery) ([]*models.Category, int64, error) {
	out := []*models.Category{}
	for _, c := range f.items {
		if q.ParentID > 0 && c.ServiceIntervenantID != q.ParentID {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(q.Search)) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, int64(len(out)), nil
}

func (f *fakeCategories) GetByID(_ context.Context, id int64) (*models.Category, error) {
	c, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCategories) FindByName(_ context.Context, serviceIntervenantID int64, name string) (*models.Category, error) {
	for _, c := range f.items {
		if c.ServiceIntervenantID == serviceIntervenantID && strings.EqualFold(c.Name, name) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCategories) Create(_ context.Context, c *models.Category) error {
	f.nextID++
	c.ID = f.nextID
	cp := *c
	f.items[c.ID] = &cp
	return nil
}

func (f *fakeCategories) Update(_ context.Context, c *models.Category) error {
	cur, ok := f.items[c.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.ServiceIntervenantID != c.ServiceIntervenantID && f.used[c.ID] {
		return repository.ErrInUse
	}
	cp := *c
	f.items[c.ID] = &cp
	return nil
}

func (f *fakeCategories) Delete(_ context.Context, id int64) error {
	if _, ok := f.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeMessages struct {
	items  map[int64]*models.Message
	nextID int64
	images *fakeImages
}

func (f *fakeMessages) ListByTicket(_ context.Context, ticketID int64) ([]*models.Message, error) {
	out := []*models.Message{}
	for _, m := range f.items {
		if m.TicketID == ticketID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeMessages) GetByID(_ context.Context, id int64) (*models.Message, error) {
	m, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *m
	return &c, nil
}

func (f *fakeMessages) Create(_ context.Context, m *models.Message, imageIDs []int64) error {
	f.nextID++
	m.ID = f.nextID
	c := *m
	f.items[m.ID] = &c
	if f.images != nil {
		f.images.attach(m.TicketID, m.ID, imageIDs)
	}
	return nil
}

type fakeImages struct {
	items  map[int64]*models.Image
	nextID int64
}

func (f *fakeImages) Create(_ context.Context, img *models.Image) error {
	f.nextID++
	img.ID = f.nextID
	c := *img
	f.items[img.ID] = &c
	return nil
}

func (f *fakeImages) GetByID(_ context.Context, id int64) (*models.Image, error) {
	img, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *img
	return &c, nil
}

func (f *fakeImages) ListByTicket(_ context.Context, ticketID int64) ([]*models.Image, error) {
	out := []*models.Image{}
	for _, img := range f.items {
		if img.TicketID == ticketID {
			c := *img
			c.Data = nil
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeImages) attach(ticketID, messageID int64, ids []int64) {
	for _, id := range ids {
		if img, ok := f.items[id]; ok && img.TicketID == ticketID && img.MessageID == nil {
			mid := messageID
			img.MessageID = &mid
		}
	}
}

func (f *fakeImages) Delete(_ context.Context, id int64) error {
	if _, ok := f.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeNotifier struct {
	created []int64
	changes []string
}

func (n *fakeNotifier) TicketCreated(_ context.Context, t *models.Ticket) error {
	n.created = append(n.created, t.ID)
	return nil
}

func (n *fakeNotifier) StatusChanged(_ context.Context, t *models.Ticket, from, to, actor, _ string) error {
	n.changes = append(n.changes, from+">"+to+" by "+actor)
	return nil
}

type fakePublisher struct {
	published []*models.Message
}

func (p *fakePublisher) Publish(_ int64, m *models.Message) {
	p.published = append(p.published, m)
}

type fakeStatistics struct {
	stats *models.Statistics
	spans []repository.ResolutionSpan
	calls int
}

func (f *fakeStatistics) Compute(_ context.Context, from, to time.Time, _ int64) (*models.Statistics, error) {
	f.calls++
	c := *f.stats
	c.From = from.Format("2006-01-02")
	c.To = to.Format("2006-01-02")
	return &c, nil
}

func (f *fakeStatistics) ResolutionSpans(context.Context, time.Time, time.Time, int64) ([]repository.ResolutionSpan, error) {
	return f.spans, nil
}
