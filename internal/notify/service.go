package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/maisonlumiere/booking/internal/booking"
)

// Service turns booking events into customer and admin emails. It is invoked
// fire-and-forget after a state change has committed; failures are logged and
// never reach the operation that triggered them.
type Service struct {
	email      EmailSender
	adminEmail string
}

func NewService(email EmailSender, adminEmail string) *Service {
	if email == nil {
		email = StubEmailSender{}
	}
	return &Service{email: email, adminEmail: adminEmail}
}

func (s *Service) Notify(ctx context.Context, ev booking.Event) {
	for _, msg := range s.messagesFor(ev) {
		if err := s.email.Send(ctx, msg); err != nil {
			log.Printf("notify: %s email to %s failed: %v", ev.Type, msg.To, err)
		}
	}
}

func (s *Service) messagesFor(ev booking.Event) []EmailMessage {
	appt := ev.Appointment
	when := fmt.Sprintf("%s at %s",
		appt.Date.Format("Monday, January 2"),
		appt.StartAt.Format("15:04"))

	var msgs []EmailMessage
	customer := func(subject, body string) {
		if appt.CustomerEmail == nil || *appt.CustomerEmail == "" {
			return
		}
		msgs = append(msgs, EmailMessage{
			To:      *appt.CustomerEmail,
			ToName:  appt.CustomerName,
			Subject: subject,
			Body:    body,
		})
	}

	switch ev.Type {
	case booking.EventAppointmentCreated:
		customer(
			"Your appointment request",
			fmt.Sprintf("Hi %s,\n\nWe received your booking for %s on %s. We'll confirm it shortly.\n", appt.CustomerName, ev.ServiceName, when))
	case booking.EventRescheduleProposed:
		proposed := "a new time"
		if appt.ProposedStartAt != nil {
			proposed = fmt.Sprintf("%s at %s",
				appt.ProposedStartAt.Format("Monday, January 2"),
				appt.ProposedStartAt.Format("15:04"))
		}
		customer(
			"We'd like to move your appointment",
			fmt.Sprintf("Hi %s,\n\nWe propose moving your %s appointment to %s. Please accept or decline from your booking page.\n", appt.CustomerName, ev.ServiceName, proposed))
	case booking.EventRescheduleAccepted:
		customer(
			"Your appointment has been moved",
			fmt.Sprintf("Hi %s,\n\nYour %s appointment is confirmed for %s.\n", appt.CustomerName, ev.ServiceName, when))
		if s.adminEmail != "" {
			msgs = append(msgs, EmailMessage{
				To:      s.adminEmail,
				Subject: "Reschedule accepted",
				Body:    fmt.Sprintf("%s accepted the new time for their %s appointment (%s).\n", appt.CustomerName, ev.ServiceName, when),
			})
		}
	case booking.EventRescheduleRejected:
		customer(
			"Your appointment change was declined",
			fmt.Sprintf("Hi %s,\n\nYou declined the proposed new time for your %s appointment. The booking has been released; please book again at your convenience.\n", appt.CustomerName, ev.ServiceName))
	case booking.EventAppointmentCancelled:
		customer(
			"Your appointment was cancelled",
			fmt.Sprintf("Hi %s,\n\nYour appointment on %s has been cancelled.\n", appt.CustomerName, when))
	}
	return msgs
}

var _ booking.Notifier = (*Service)(nil)
