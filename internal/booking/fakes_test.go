package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// In-memory collaborators for service tests. The repository mirrors the
// conditional-update semantics of the Postgres implementation; the
// locker serializes per slot id with real mutexes so concurrency tests
// exercise the same winner-loser behavior as production.

type memRepo struct {
	mu            sync.Mutex
	slots         map[uuid.UUID]Slot
	appointments  map[uuid.UUID]Appointment
	cancellations []CancellationLog
	events        []EventLog
}

func newMemRepo() *memRepo {
	return &memRepo{
		slots:        make(map[uuid.UUID]Slot),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

func (r *memRepo) CreateSlot(_ context.Context, s *Slot) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.slots[cp.ID] = cp
	out := cp
	return &out, nil
}

func (r *memRepo) GetSlotByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	out := s
	return &out, nil
}

func (r *memRepo) UpdateSlotSchedule(_ context.Context, id uuid.UUID, start, end time.Time, description string) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	s.StartTime = start
	s.EndTime = end
	s.Description = description
	s.UpdatedAt = time.Now()
	r.slots[id] = s
	out := s
	return &out, nil
}

func (r *memRepo) UpdateSlotStatus(_ context.Context, id uuid.UUID, from, to SlotStatus) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok || s.Status != from {
		return nil, ErrSlotNotFound
	}
	s.Status = to
	s.UpdatedAt = time.Now()
	r.slots[id] = s
	out := s
	return &out, nil
}

func (r *memRepo) DeleteSlot(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[id]; !ok {
		return ErrSlotNotFound
	}
	delete(r.slots, id)
	return nil
}

func (r *memRepo) ListSlotsByProvider(_ context.Context, providerID uuid.UUID) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Slot
	for _, s := range r.slots {
		if s.ProviderID == providerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memRepo) ListAllSlots(_ context.Context) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Slot, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, s)
	}
	return out, nil
}

func (r *memRepo) FindSlotsEndedBefore(_ context.Context, t time.Time, status SlotStatus) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Slot
	for _, s := range r.slots {
		if s.Status == status && s.EndTime.Before(t) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memRepo) CreateAppointment(_ context.Context, a *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.appointments[cp.ID] = cp
	out := cp
	return &out, nil
}

func (r *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := a
	return &out, nil
}

func (r *memRepo) GetBookedAppointmentForSlot(_ context.Context, slotID uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appointments {
		if a.SlotID == slotID && a.Status == AppointmentBooked {
			out := a
			return &out, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	out := a
	return &out, nil
}

func (r *memRepo) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.appointments, id)
	return nil
}

func (r *memRepo) detailLocked(a Appointment) AppointmentDetail {
	d := AppointmentDetail{Appointment: a}
	if s, ok := r.slots[a.SlotID]; ok {
		cp := s
		d.Slot = &cp
	}
	return d
}

func (r *memRepo) ListAppointmentsByConsumer(_ context.Context, consumerID uuid.UUID) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AppointmentDetail
	for _, a := range r.appointments {
		if a.ConsumerID == consumerID {
			out = append(out, r.detailLocked(a))
		}
	}
	return out, nil
}

func (r *memRepo) ListAppointmentsByProvider(_ context.Context, providerID uuid.UUID) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AppointmentDetail
	for _, a := range r.appointments {
		if s, ok := r.slots[a.SlotID]; ok && s.ProviderID == providerID {
			out = append(out, r.detailLocked(a))
		}
	}
	return out, nil
}

func (r *memRepo) FindBookedEndedBefore(_ context.Context, t time.Time) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AppointmentDetail
	for _, a := range r.appointments {
		if a.Status != AppointmentBooked {
			continue
		}
		if s, ok := r.slots[a.SlotID]; ok && s.EndTime.Before(t) {
			out = append(out, r.detailLocked(a))
		}
	}
	return out, nil
}

func (r *memRepo) FindBookedStartingBetween(_ context.Context, from, to time.Time) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AppointmentDetail
	for _, a := range r.appointments {
		if a.Status != AppointmentBooked {
			continue
		}
		if s, ok := r.slots[a.SlotID]; ok && s.StartTime.After(from) && s.StartTime.Before(to) {
			out = append(out, r.detailLocked(a))
		}
	}
	return out, nil
}

func (r *memRepo) InsertCancellationLog(_ context.Context, cl CancellationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancellations = append(r.cancellations, cl)
	return nil
}

func (r *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepo) eventCount(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.EventType == eventType {
			n++
		}
	}
	return n
}

// memWaitlist is a map-of-slices FIFO queue.
type memWaitlist struct {
	mu    sync.Mutex
	lists map[uuid.UUID][]uuid.UUID
}

func newMemWaitlist() *memWaitlist {
	return &memWaitlist{lists: make(map[uuid.UUID][]uuid.UUID)}
}

func (w *memWaitlist) Append(_ context.Context, slotID, consumerID uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lists[slotID] = append(w.lists[slotID], consumerID)
	return nil
}

func (w *memWaitlist) PopFront(_ context.Context, slotID uuid.UUID) (uuid.UUID, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	l := w.lists[slotID]
	if len(l) == 0 {
		return uuid.Nil, false, nil
	}
	head := l[0]
	if len(l) == 1 {
		delete(w.lists, slotID)
	} else {
		w.lists[slotID] = l[1:]
	}
	return head, true, nil
}

func (w *memWaitlist) Range(_ context.Context, slotID uuid.UUID) ([]uuid.UUID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]uuid.UUID, len(w.lists[slotID]))
	copy(out, w.lists[slotID])
	return out, nil
}

func (w *memWaitlist) Replace(_ context.Context, slotID uuid.UUID, consumers []uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(consumers) == 0 {
		delete(w.lists, slotID)
		return nil
	}
	cp := make([]uuid.UUID, len(consumers))
	copy(cp, consumers)
	w.lists[slotID] = cp
	return nil
}

func (w *memWaitlist) Delete(_ context.Context, slotID uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.lists, slotID)
	return nil
}

func (w *memWaitlist) Len(_ context.Context, slotID uuid.UUID) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int64(len(w.lists[slotID])), nil
}

func (w *memWaitlist) SlotIDs(_ context.Context) ([]uuid.UUID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []uuid.UUID
	for id, l := range w.lists {
		if len(l) > 0 {
			out = append(out, id)
		}
	}
	return out, nil
}

// localLocker serializes per key with in-process mutexes. Unlike the
// Redis locker it blocks instead of failing fast, so the loser of a
// race proceeds and trips the state precondition.
type localLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLocalLocker() *localLocker {
	return &localLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *localLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	return l.withLock("slot:"+slotID.String(), ctx, fn)
}

func (l *localLocker) WithConsumerLock(ctx context.Context, consumerID uuid.UUID, fn func(ctx context.Context) error) error {
	return l.withLock("consumer:"+consumerID.String(), ctx, fn)
}

func (l *localLocker) withLock(key string, ctx context.Context, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

// recordNotifier captures sends for assertions.
type recordNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

type sentNotification struct {
	Recipient string
	Message   string
}

func newRecordNotifier() *recordNotifier {
	return &recordNotifier{}
}

func (n *recordNotifier) Send(_ context.Context, recipient, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Recipient: recipient, Message: message})
	return nil
}

func (n *recordNotifier) countFor(recipient string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.Recipient == recipient {
			c++
		}
	}
	return c
}
