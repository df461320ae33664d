package room

import (
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/naveenspark/sidechat/pkg/domain"
)

// Reconciler owns the message list of the active room. Messages are unique
// by id and ordered by CreatedAt ascending; equal timestamps keep arrival
// order. It is not safe for concurrent use.
type Reconciler struct {
	messages []domain.Message
	index    map[uuid.UUID]struct{}
}

// NewReconciler returns an empty reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{index: make(map[uuid.UUID]struct{})}
}

// Reset drops every message.
func (r *Reconciler) Reset() {
	r.messages = nil
	r.index = make(map[uuid.UUID]struct{})
}

// LoadBulk replaces the current list with rows, in any order.
func (r *Reconciler) LoadBulk(rows []domain.Message) {
	r.Reset()
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b domain.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	for _, m := range sorted {
		r.ApplyInsert(m)
	}
}

// ApplyInsert adds m unless its id is already present. It reports whether
// the list changed.
func (r *Reconciler) ApplyInsert(m domain.Message) bool {
	if _, ok := r.index[m.ID]; ok {
		return false
	}
	r.index[m.ID] = struct{}{}
	r.insertOrdered(m)
	return true
}

// ApplyUpdate replaces the stored message with the same id, or inserts m if
// the id is unknown. A stored author profile survives an update that
// carries none.
func (r *Reconciler) ApplyUpdate(m domain.Message) {
	i := r.position(m.ID)
	if i < 0 {
		r.ApplyInsert(m)
		return
	}
	old := r.messages[i]
	if m.Profile == nil {
		m.Profile = old.Profile
	}
	if m.CreatedAt.Equal(old.CreatedAt) {
		r.messages[i] = m
		return
	}
	r.messages = slices.Delete(r.messages, i, i+1)
	r.insertOrdered(m)
}

// ApplyDelete removes the message with id. Unknown ids are ignored.
func (r *Reconciler) ApplyDelete(id uuid.UUID) bool {
	i := r.position(id)
	if i < 0 {
		return false
	}
	r.messages = slices.Delete(r.messages, i, i+1)
	delete(r.index, id)
	return true
}

// FillProfile attaches p to messages by userID that have no profile yet.
func (r *Reconciler) FillProfile(userID uuid.UUID, p *domain.Profile) int {
	if p == nil {
		return 0
	}
	n := 0
	for i := range r.messages {
		if r.messages[i].UserID == userID && r.messages[i].Profile == nil {
			r.messages[i].Profile = p
			n++
		}
	}
	return n
}

// Snapshot returns a copy of the ordered list.
func (r *Reconciler) Snapshot() []domain.Message {
	return slices.Clone(r.messages)
}

// Len returns the number of messages.
func (r *Reconciler) Len() int { return len(r.messages) }

// Has reports whether a message with id is present.
func (r *Reconciler) Has(id uuid.UUID) bool {
	_, ok := r.index[id]
	return ok
}

// insertOrdered places m after every message not newer than it.
func (r *Reconciler) insertOrdered(m domain.Message) {
	i := sort.Search(len(r.messages), func(i int) bool {
		return r.messages[i].CreatedAt.After(m.CreatedAt)
	})
	r.messages = slices.Insert(r.messages, i, m)
}

func (r *Reconciler) position(id uuid.UUID) int {
	if _, ok := r.index[id]; !ok {
		return -1
	}
	_, i, _ := lo.FindIndexOf(r.messages, func(m domain.Message) bool { return m.ID == id })
	return i
}
