package delivery

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joshu-sajeev/coursenotify/common"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type SendgridDeliverer struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
}

var _ Deliverer = (*SendgridDeliverer)(nil)

func NewSendgridDeliverer(key, fromName, fromAddress, subjPrefix string) *SendgridDeliverer {
	if subjPrefix != "" {
		subjPrefix += " "
	}
	return &SendgridDeliverer{
		key:        key,
		host:       sendgridHost,
		from:       sgmail.NewEmail(fromName, fromAddress),
		subjPrefix: subjPrefix,
	}
}

func (d *SendgridDeliverer) prepare(n Notification) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = d.subjPrefix + n.Subject
	p.AddTos(sgmail.NewEmail(n.Target.Name, n.Target.Email))

	m := sgmail.NewV3Mail()
	m.SetFrom(d.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", Body(n)))
	if n.TemplateKey != "" {
		m.AddCategories(n.TemplateKey)
	}
	return m
}

func (d *SendgridDeliverer) Deliver(ctx context.Context, n Notification) error {
	if n.Target.Email == "" {
		return fmt.Errorf("%w: recipient has no email address", common.ErrPermanentDelivery)
	}

	req := sendgrid.GetRequest(d.key, sendgridEndpoint, d.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(d.prepare(n))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: sendgrid: %w", common.ErrTransientDelivery, err)
	}
	return classifyStatus(res.StatusCode, res.Body)
}

func classifyStatus(status int, body string) error {
	switch {
	case status < http.StatusBadRequest:
		return nil
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: sendgrid status %d: %s", common.ErrTransientDelivery, status, body)
	default:
		return fmt.Errorf("%w: sendgrid status %d: %s", common.ErrPermanentDelivery, status, body)
	}
}
