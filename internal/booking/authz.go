package booking

// Authorization predicates. Ownership checks live here so that every
// service answers "may this actor act on this resource" the same way.

// canManageSlot: slot mutations are allowed for the owning provider or
// an admin.
func canManageSlot(actor Actor, s *Slot) bool {
	return actor.IsAdmin() || actor.ID == s.ProviderID
}

// canCancelAppointment: the booking consumer, the slot's provider, or
// an admin may cancel.
func canCancelAppointment(actor Actor, a *Appointment, s *Slot) bool {
	return actor.IsAdmin() || actor.ID == a.ConsumerID || actor.ID == s.ProviderID
}

// canViewAppointment: reads are visible to the consumer and the slot's
// provider only. Callers report a failed check as not-found to avoid
// leaking that the appointment exists.
func canViewAppointment(actor Actor, a *Appointment, s *Slot) bool {
	return actor.ID == a.ConsumerID || actor.ID == s.ProviderID
}
