package scheduling

import (
	"github.com/google/uuid"

	"github.com/hospital/frontdesk/internal/domain/identity"
)

// canManageDoctor covers the doctor's own template, dashboard and slot view,
// and status transitions on the doctor's appointments.
func canManageDoctor(a identity.Actor, doctorID uuid.UUID) bool {
	return a.IsStaff() || a.IsDoctor(doctorID)
}

// canActOn covers viewing, cancelling and rescheduling an appointment: its
// patient, its doctor, or staff.
func canActOn(a identity.Actor, appt *Appointment) bool {
	return a.IsStaff() || a.IsDoctor(appt.DoctorID) || a.IsPatient(appt.PatientID)
}
