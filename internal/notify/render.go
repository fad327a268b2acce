package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/villanet/booking/internal/domain"
	"github.com/villanet/booking/internal/mail"
)

const (
	SubjectCreated  = "New Reservation"
	SubjectCanceled = "Canceled Reservation"
)

const (
	longDateLayout  = "Monday, 2 January 2006"
	timestampLayout = "2006-01-02 15:04:05 MST"
)

var funcs = template.FuncMap{
	"longDate": func(d domain.Date) string { return d.Time().Format(longDateLayout) },
	"stamp":    func(t time.Time) string { return t.UTC().Format(timestampLayout) },
}

var createdTmpl = template.Must(template.New("created").Funcs(funcs).Parse(`<p>Hello,</p>
<p>You have received a new reservation for your property <strong>{{.PropertyName}}</strong>.</p>
<h3>Reservation Details:</h3>
<ul>
  <li><strong>Reservation ID:</strong> {{.ReservationID}}</li>
  <li><strong>Booked By:</strong> {{.BookedBy}}</li>
  <li><strong>Start Date:</strong> {{longDate .StartDate}}</li>
  <li><strong>End Date:</strong> {{longDate .EndDate}}</li>
  <li><strong>Total Nights:</strong> {{.TotalNights}}</li>
  <li><strong>Total Price:</strong> {{.TotalPrice.StringFixed 2}} лв.</li>
  <li><strong>Reservation Made At:</strong> {{stamp .CreatedAt}}</li>
</ul>
<p>Best regards,<br/>VillaNet team</p>`))

var canceledTmpl = template.Must(template.New("canceled").Funcs(funcs).Parse(`<p>Hello,</p>
<p>We would like to inform you that a reservation for your property <strong>'{{.PropertyName}}'</strong> has been <span style="color: red;">canceled</span>.</p>
<h3>Reservation Details:</h3>
<ul>
  <li><strong>Reservation ID:</strong> {{.ReservationID}}</li>
  <li><strong>Start date:</strong> {{.StartDate}}</li>
  <li><strong>End date:</strong> {{.EndDate}}</li>
  <li><strong>Canceled By:</strong> {{.BookedBy}}</li>
  <li><strong>Canceled At:</strong> {{stamp .CanceledAt}}</li>
</ul>
<p>If you have any questions or concerns, feel free to contact our support team.</p>
<p>Best regards,<br/>VillaNet team</p>`))

// RenderCreated builds the owner's new-reservation email.
func RenderCreated(ev domain.ReservationCreated) (mail.Email, error) {
	body, err := execute(createdTmpl, ev)
	if err != nil {
		return mail.Email{}, err
	}
	return mail.Email{To: ev.OwnerEmail, Subject: SubjectCreated, HTMLBody: body}, nil
}

// RenderCanceled builds the owner's cancellation email.
func RenderCanceled(ev domain.ReservationCanceled) (mail.Email, error) {
	body, err := execute(canceledTmpl, ev)
	if err != nil {
		return mail.Email{}, err
	}
	return mail.Email{To: ev.OwnerEmail, Subject: SubjectCanceled, HTMLBody: body}, nil
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}
