package pipeline

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/shopspring/decimal"

	"lance/models"
)

const reportTemplate = `AUCTION REPORT
==============

Item:          {{ .Title }}
Auction ID:    {{ .AuctionID }}
{{- if .Description }}
Description:   {{ .Description }}
{{- end }}

Starting price: {{ money .StartPrice }}
Final price:    {{ money .FinalPrice }}
Total bids:     {{ .BidCount }}
{{- if .HasWinner }}
Winner:         {{ .WinnerName }} ({{ .WinnerID }})
{{- else }}
Winner:         none, the auction closed without bids
{{- end }}

Created:  {{ .CreatedAt.Format "2006-01-02 15:04:05 MST" }}
Ended:    {{ .EndTime.Format "2006-01-02 15:04:05 MST" }}
{{- if .Bids }}

Latest bids
-----------
{{- range .Bids }}
{{ .Timestamp.Format "2006-01-02 15:04:05" }}  {{ printf "%-20s" .BidderName }} {{ money .Amount }}
{{- end }}
{{- end }}
`

const emailTemplate = `Hello {{ .WinnerName }},

Congratulations! You won the auction for "{{ .Title }}" with a final bid of {{ money .FinalPrice }}.

Next steps: the seller will contact you shortly with payment and delivery details.
Please keep this e-mail as confirmation of your purchase.

Thank you for bidding with us.

The Lance team
`

const chatTemplate = `:tada: **Auction closed: {{ .Title }}**
{{- if .HasWinner }}
Sold for **{{ money .FinalPrice }}** to **{{ .WinnerName }}** after {{ .BidCount }} bid{{ if ne .BidCount 1 }}s{{ end }}. Congratulations!
{{- else }}
No bids this time, the item is still up for grabs.
{{- end }}
Keep an eye out for the next auctions :eyes:`

// TemplateGenerator 以 text/template 產生報告與通知
type TemplateGenerator struct {
	report *template.Template
	email  *template.Template
	chat   *template.Template
}

func NewTemplateGenerator() *TemplateGenerator {
	funcs := template.FuncMap{"money": money}
	return &TemplateGenerator{
		report: template.Must(template.New("report").Funcs(funcs).Parse(reportTemplate)),
		email:  template.Must(template.New("email").Funcs(funcs).Parse(emailTemplate)),
		chat:   template.Must(template.New("chat").Funcs(funcs).Parse(chatTemplate)),
	}
}

func (g *TemplateGenerator) Report(auction models.EndedAuction) (string, error) {
	return render(g.report, auction)
}

func (g *TemplateGenerator) WinnerEmail(auction models.EndedAuction) (Email, error) {
	const op = "TemplateGenerator.WinnerEmail"
	if !auction.HasWinner() {
		return Email{}, fmt.Errorf("[%s] auction %s has no winner", op, auction.AuctionID)
	}
	body, err := render(g.email, auction)
	if err != nil {
		return Email{}, err
	}
	return Email{
		To:      auction.WinnerContact,
		Subject: "Congratulations! You won the auction: " + auction.Title,
		Body:    body,
	}, nil
}

func (g *TemplateGenerator) ChatPost(auction models.EndedAuction) (string, error) {
	return render(g.chat, auction)
}

func render(tpl *template.Template, auction models.EndedAuction) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, auction); err != nil {
		return "", fmt.Errorf("[render] Fail to execute template %s, err=%w", tpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func money(v decimal.Decimal) string {
	return "$" + v.StringFixed(2)
}
