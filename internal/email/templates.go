package email

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
)

const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplateOrderDelivered    = "order_delivered"

	storeName = "Don Chupilas"
)

// OrderInfo is the data rendered into order emails.
type OrderInfo struct {
	OrderNumber       string
	CustomerName      string
	CustomerEmail     string
	StoreName         string
	StoreURL          string
	OrderDate         string
	EstimatedDelivery string
	DeliveredAt       string
	PaymentMethod     string
	Address           string
	Items             []OrderItem
	Subtotal          string
	Shipping          string
	Tax               string
	Total             string
}

type OrderItem struct {
	Name       string
	Quantity   int
	UnitPrice  string
	TotalPrice string
}

var paymentLabels = map[models.PaymentMethod]string{
	models.PaymentCash:     "Efectivo",
	models.PaymentTransfer: "Transferencia",
	models.PaymentCard:     "Tarjeta",
}

// BuildOrderInfo formats an order for rendering. Times are shown in loc.
func BuildOrderInfo(order *models.Order, customer *models.Account, storeURL string, loc *time.Location) *OrderInfo {
	if loc == nil {
		loc = time.UTC
	}
	info := &OrderInfo{
		OrderNumber:       order.Number,
		StoreName:         storeName,
		StoreURL:          storeURL,
		OrderDate:         order.CreatedAt.In(loc).Format("02/01/2006 15:04"),
		EstimatedDelivery: order.EstimatedDeliveryAt.In(loc).Format("15:04"),
		PaymentMethod:     paymentLabels[order.PaymentMethod],
		Address:           formatAddress(order.Address),
		Subtotal:          money(order.Subtotal),
		Shipping:          money(order.ShippingCost),
		Tax:               money(order.Tax),
		Total:             money(order.Total),
	}
	if order.DeliveredAt != nil {
		info.DeliveredAt = order.DeliveredAt.In(loc).Format("02/01/2006 15:04")
	}
	if customer != nil {
		info.CustomerName = customer.Name
		info.CustomerEmail = customer.Email
	}
	for _, item := range order.Items {
		info.Items = append(info.Items, OrderItem{
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  money(item.UnitPrice),
			TotalPrice: money(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))),
		})
	}
	return info
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func formatAddress(a models.Address) string {
	parts := []string{strings.TrimSpace(a.Street + " " + a.Number), a.Neighborhood, a.City}
	if a.PostalCode != "" {
		parts = append(parts, "CP "+a.PostalCode)
	}
	kept := parts[:0]
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, ", ")
}

type emailTemplate struct {
	subject string
	html    string
	text    string
}

var emailTemplates = map[string]emailTemplate{
	TemplateOrderConfirmation: {
		subject: "Pedido confirmado - {{.OrderNumber}} - {{.StoreName}}",
		html:    orderConfirmationHTML,
		text:    orderConfirmationText,
	},
	TemplateOrderDelivered: {
		subject: "Tu pedido fue entregado - {{.OrderNumber}}",
		html:    orderDeliveredHTML,
		text:    orderDeliveredText,
	},
}

// Renderer provides methods to render email templates
type Renderer struct {
	subjects *texttemplate.Template
	text     *texttemplate.Template
	html     *htmltemplate.Template
}

func NewRenderer() (*Renderer, error) {
	subjects := texttemplate.New("subjects")
	text := texttemplate.New("text")
	html := htmltemplate.New("html")

	for key, t := range emailTemplates {
		if _, err := subjects.New(key).Parse(t.subject); err != nil {
			return nil, fmt.Errorf("failed to parse subject template %s: %w", key, err)
		}
		if _, err := text.New(key).Parse(t.text); err != nil {
			return nil, fmt.Errorf("failed to parse text template %s: %w", key, err)
		}
		if _, err := html.New(key).Parse(t.html); err != nil {
			return nil, fmt.Errorf("failed to parse HTML template %s: %w", key, err)
		}
	}

	return &Renderer{subjects: subjects, text: text, html: html}, nil
}

func (r *Renderer) Render(ctx context.Context, templateName string, data *OrderInfo) (*Email, error) {
	_ = ctx
	if data == nil {
		return nil, fmt.Errorf("order info is required")
	}
	if _, ok := emailTemplates[templateName]; !ok {
		return nil, fmt.Errorf("unknown email template %q", templateName)
	}

	var subjectBuf, textBuf, htmlBuf bytes.Buffer
	if err := r.subjects.ExecuteTemplate(&subjectBuf, templateName, data); err != nil {
		return nil, fmt.Errorf("failed to render subject: %w", err)
	}
	if err := r.text.ExecuteTemplate(&textBuf, templateName, data); err != nil {
		return nil, fmt.Errorf("failed to render text template: %w", err)
	}
	if err := r.html.ExecuteTemplate(&htmlBuf, templateName, data); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}

	email := &Email{
		To:      data.CustomerEmail,
		Subject: subjectBuf.String(),
		Text:    textBuf.String(),
		HTML:    htmlBuf.String(),
		Tags:    map[string]string{"template": templateName},
	}
	if data.OrderNumber != "" {
		email.Tags["order"] = data.OrderNumber
	}
	return email, nil
}

// Send renders templateName and delivers it. A nil provider is a no-op.
func (r *Renderer) Send(ctx context.Context, p Provider, templateName string, data *OrderInfo) error {
	if p == nil {
		return nil
	}
	if data == nil || data.CustomerEmail == "" {
		return fmt.Errorf("recipient address is required")
	}

	email, err := r.Render(ctx, templateName, data)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	return p.SendEmail(ctx, email)
}

const orderConfirmationText = `¡Gracias por tu pedido, {{.CustomerName}}!

Pedido: {{.OrderNumber}}
Fecha: {{.OrderDate}}
Entrega estimada: {{.EstimatedDelivery}}

Productos:
{{range .Items}}- {{.Name}} x{{.Quantity}} - {{.TotalPrice}}
{{end}}
Subtotal: {{.Subtotal}}
Envío: {{.Shipping}}
Impuestos: {{.Tax}}
Total: {{.Total}}
Pago: {{.PaymentMethod}}

Entregar en: {{.Address}}

{{.StoreName}}{{if .StoreURL}}
{{.StoreURL}}{{end}}
`

const orderConfirmationHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Pedido confirmado</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #b45309; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
    .content { background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; }
    .items-table { width: 100%; border-collapse: collapse; margin: 15px 0; }
    .items-table th { text-align: left; padding: 8px; background: #f3f4f6; }
    .items-table td { padding: 8px; border-bottom: 1px solid #e5e7eb; }
    .total { font-weight: bold; text-align: right; }
  </style>
</head>
<body>
  <div class="header">
    <h1>¡Pedido confirmado!</h1>
    <p>Gracias, {{.CustomerName}}</p>
  </div>
  <div class="content">
    <p><strong>Pedido:</strong> {{.OrderNumber}}<br>
    <strong>Fecha:</strong> {{.OrderDate}}<br>
    <strong>Entrega estimada:</strong> {{.EstimatedDelivery}}</p>
    <table class="items-table">
      <thead><tr><th>Producto</th><th>Cant.</th><th>Importe</th></tr></thead>
      <tbody>
        {{range .Items}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{.TotalPrice}}</td></tr>
        {{end}}
      </tbody>
    </table>
    <div class="total">
      <p>Subtotal: {{.Subtotal}}<br>Envío: {{.Shipping}}<br>Impuestos: {{.Tax}}<br>Total: {{.Total}}</p>
    </div>
    <p><strong>Pago:</strong> {{.PaymentMethod}}<br><strong>Entregar en:</strong> {{.Address}}</p>
  </div>
  <p>{{if .StoreURL}}<a href="{{.StoreURL}}">{{.StoreName}}</a>{{else}}{{.StoreName}}{{end}}</p>
</body>
</html>
`

const orderDeliveredText = `¡Tu pedido llegó, {{.CustomerName}}!

Pedido: {{.OrderNumber}}
Entregado: {{.DeliveredAt}}
En: {{.Address}}

Califica a tu repartidor desde la app.

{{.StoreName}}{{if .StoreURL}}
{{.StoreURL}}{{end}}
`

const orderDeliveredHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Pedido entregado</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #047857; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
    .content { background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; }
  </style>
</head>
<body>
  <div class="header">
    <h1>¡Pedido entregado!</h1>
    <p>Salud, {{.CustomerName}}</p>
  </div>
  <div class="content">
    <p><strong>Pedido:</strong> {{.OrderNumber}}<br>
    <strong>Entregado:</strong> {{.DeliveredAt}}<br>
    <strong>En:</strong> {{.Address}}</p>
    <p>Califica a tu repartidor desde la app.</p>
  </div>
  <p>{{if .StoreURL}}<a href="{{.StoreURL}}">{{.StoreName}}</a>{{else}}{{.StoreName}}{{end}}</p>
</body>
</html>
`
