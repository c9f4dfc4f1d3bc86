package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"crewsync/internal/directory"
	"crewsync/internal/domain"
)

// === Trip repository fake ===

type memTripRepo struct {
	mu    sync.Mutex
	trips map[string]domain.Trip
}

func newMemTripRepo(trips ...domain.Trip) *memTripRepo {
	r := &memTripRepo{trips: make(map[string]domain.Trip, len(trips))}
	for _, t := range trips {
		r.trips[t.ID] = t
	}
	return r
}

func (r *memTripRepo) put(t domain.Trip) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trips[t.ID] = t
}

func (r *memTripRepo) Get(_ context.Context, id string) (*domain.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return nil, domain.ErrNotFound("trip %s not found", id)
	}
	return &t, nil
}

func (r *memTripRepo) FindDepartingInRange(_ context.Context, start, end time.Time) ([]domain.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Trip
	for _, t := range r.trips {
		if !t.DepartureTime.Before(start) && !t.DepartureTime.After(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

// === Tracking store fake ===

type memStore struct {
	mu      sync.Mutex
	byGroup map[string]domain.TrackedGroup
}

func newMemStore() *memStore {
	return &memStore{byGroup: make(map[string]domain.TrackedGroup)}
}

func (s *memStore) Upsert(_ context.Context, g *domain.TrackedGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.byGroup {
		if existing.TripID == g.TripID && id != g.GroupID {
			return domain.ErrConflict("trip %s already tracked by group %s", g.TripID, id)
		}
	}
	s.byGroup[g.GroupID] = *g
	return nil
}

func (s *memStore) Delete(_ context.Context, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byGroup, groupID)
	return nil
}

func (s *memStore) GetByGroup(_ context.Context, groupID string) (*domain.TrackedGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.byGroup[groupID]
	if !ok {
		return nil, domain.ErrNotFound("group %s not tracked", groupID)
	}
	return &g, nil
}

func (s *memStore) GetByTrip(_ context.Context, tripID string) (*domain.TrackedGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.byGroup {
		if g.TripID == tripID {
			out := g
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound("trip %s not tracked", tripID)
}

func (s *memStore) FindActiveCreatedBefore(_ context.Context, t time.Time) ([]domain.TrackedGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TrackedGroup
	for _, g := range s.byGroup {
		if g.Active() && g.CreationTime.Before(t) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *memStore) ListAll(_ context.Context) ([]domain.TrackedGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TrackedGroup, 0, len(s.byGroup))
	for _, g := range s.byGroup {
		out = append(out, g)
	}
	return out, nil
}

// === Directory fake ===

type fakeGroup struct {
	displayName string
	description string
	members     map[string]bool // user id → present
	owners      map[string]bool
}

// fakeDir is an in-memory directory that records its mutation call sequence
// so tests can assert ordering invariants.
type fakeDir struct {
	mu     sync.Mutex
	nextID int
	groups map[string]*fakeGroup
	users  map[string]domain.DirectoryUser // lowercased UPN → user
	calls  []string

	createErr   error // fail CreateFullGroup
	resolveErrs map[string]error
}

func newFakeDir(users ...domain.DirectoryUser) *fakeDir {
	d := &fakeDir{
		groups:      make(map[string]*fakeGroup),
		users:       make(map[string]domain.DirectoryUser, len(users)),
		resolveErrs: make(map[string]error),
	}
	for _, u := range users {
		d.users[strings.ToLower(u.UserPrincipalName)] = u
	}
	return d
}

func (d *fakeDir) record(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *fakeDir) callsMatching(prefix string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, c := range d.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (d *fakeDir) callIndex(call string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, c := range d.calls {
		if c == call {
			return i
		}
	}
	return -1
}

// addGroup seeds a remote group with members/owners by directory user.
func (d *fakeDir) addGroup(id, displayName string, members, owners []domain.DirectoryUser) {
	g := &fakeGroup{
		displayName: displayName,
		members:     make(map[string]bool),
		owners:      make(map[string]bool),
	}
	for _, m := range members {
		g.members[m.ID] = true
	}
	for _, o := range owners {
		g.owners[o.ID] = true
	}
	d.groups[id] = g
}

func (d *fakeDir) notFound(what string) error {
	return &directory.APIError{StatusCode: 404, Code: "Request_ResourceNotFound", Message: what + " not found"}
}

func (d *fakeDir) GetGroup(_ context.Context, groupID string) (*domain.DirectoryGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, d.notFound("group " + groupID)
	}
	return &domain.DirectoryGroup{ID: groupID, DisplayName: g.displayName, Description: g.description}, nil
}

func (d *fakeDir) UpdateGroupName(_ context.Context, groupID, displayName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("UpdateGroupName %s", groupID)
	g, ok := d.groups[groupID]
	if !ok {
		return d.notFound("group " + groupID)
	}
	g.displayName = displayName
	return nil
}

func (d *fakeDir) DeleteGroup(_ context.Context, groupID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DeleteGroup %s", groupID)
	if _, ok := d.groups[groupID]; !ok {
		return d.notFound("group " + groupID)
	}
	delete(d.groups, groupID)
	return nil
}

func (d *fakeDir) CreateFullGroup(_ context.Context, displayName, description, _ string, _ domain.TeamSettings) (*domain.DirectoryGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return nil, d.createErr
	}
	d.nextID++
	id := fmt.Sprintf("grp-%d", d.nextID)
	d.groups[id] = &fakeGroup{
		displayName: displayName,
		description: description,
		members:     make(map[string]bool),
		owners:      make(map[string]bool),
	}
	d.record("CreateFullGroup %s", id)
	return &domain.DirectoryGroup{ID: id, DisplayName: displayName, Description: description}, nil
}

func (d *fakeDir) ConvertToManagedGroup(_ context.Context, groupID string, _ domain.TeamSettings) (*domain.DirectoryGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, d.notFound("group " + groupID)
	}
	return &domain.DirectoryGroup{ID: groupID, DisplayName: g.displayName}, nil
}

func (d *fakeDir) listUsers(groupID string, set func(*fakeGroup) map[string]bool) ([]domain.DirectoryUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, d.notFound("group " + groupID)
	}
	var out []domain.DirectoryUser
	for _, u := range d.users {
		if set(g)[u.ID] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *fakeDir) ListMembers(_ context.Context, groupID string) ([]domain.DirectoryUser, error) {
	return d.listUsers(groupID, func(g *fakeGroup) map[string]bool { return g.members })
}

func (d *fakeDir) ListOwners(_ context.Context, groupID string) ([]domain.DirectoryUser, error) {
	return d.listUsers(groupID, func(g *fakeGroup) map[string]bool { return g.owners })
}

func (d *fakeDir) AddMember(_ context.Context, groupID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("AddMember %s %s", groupID, userID)
	g, ok := d.groups[groupID]
	if !ok {
		return d.notFound("group " + groupID)
	}
	g.members[userID] = true
	return nil
}

func (d *fakeDir) RemoveMember(_ context.Context, groupID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("RemoveMember %s %s", groupID, userID)
	g, ok := d.groups[groupID]
	if !ok {
		return d.notFound("group " + groupID)
	}
	delete(g.members, userID)
	return nil
}

func (d *fakeDir) AddOwner(_ context.Context, groupID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("AddOwner %s %s", groupID, userID)
	g, ok := d.groups[groupID]
	if !ok {
		return d.notFound("group " + groupID)
	}
	g.owners[userID] = true
	return nil
}

func (d *fakeDir) RemoveOwner(_ context.Context, groupID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("RemoveOwner %s %s", groupID, userID)
	g, ok := d.groups[groupID]
	if !ok {
		return d.notFound("group " + groupID)
	}
	delete(g.owners, userID)
	return nil
}

func (d *fakeDir) ResolveUser(_ context.Context, principalName string) (*domain.DirectoryUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.resolveErrs[strings.ToLower(principalName)]; ok {
		return nil, err
	}
	u, ok := d.users[strings.ToLower(principalName)]
	if !ok {
		return nil, d.notFound("user " + principalName)
	}
	return &u, nil
}

var _ domain.Directory = (*fakeDir)(nil)
