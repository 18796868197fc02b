package pipeline

import (
	"net/mail"
	"strconv"
	"strings"

	"github.com/heartmarshall/brandkit/internal/domain"
)

// Form labels read from a submission. Matching ignores case and surrounding
// whitespace.
const (
	LabelCompanyName  = "Company Name"
	LabelEmail        = "Email"
	LabelAddress      = "Address"
	LabelCityStateZip = "City, State ZIP"
	LabelPhone        = "Phone"
	LabelTax          = "Tax %"
	LabelCurrency     = "Currency"
	LabelLogoURL      = "Logo URL"
)

// Extract builds a Submission from the event's form fields. A missing or
// malformed email, a missing logo or a non-numeric tax rate is reported as a
// *domain.ValidationError listing every offending field.
func Extract(ev domain.Event) (domain.Submission, error) {
	byLabel := make(map[string]domain.Field, len(ev.Data.Fields))
	for _, f := range ev.Data.Fields {
		key := normalizeLabel(f.Label)
		if _, seen := byLabel[key]; !seen {
			byLabel[key] = f
		}
	}
	text := func(label string) string {
		f, ok := byLabel[normalizeLabel(label)]
		if !ok {
			return ""
		}
		v, _ := f.Text()
		return strings.TrimSpace(v)
	}

	sub := domain.Submission{
		BusinessName: orDefault(text(LabelCompanyName), domain.DefaultBusinessName),
		Address:      text(LabelAddress),
		CityStateZip: text(LabelCityStateZip),
		Phone:        text(LabelPhone),
		Email:        text(LabelEmail),
		TaxPercent:   orDefault(strings.TrimSuffix(text(LabelTax), "%"), domain.DefaultTaxPercent),
		Currency:     strings.ToUpper(orDefault(text(LabelCurrency), domain.DefaultCurrency)),
		LogoURL:      logoURL(ev.Data.Fields, text(LabelLogoURL)),
	}

	var errs []domain.FieldError
	if sub.Email == "" {
		errs = append(errs, domain.FieldError{Field: "email", Message: "required"})
	} else if addr, err := mail.ParseAddress(sub.Email); err != nil {
		errs = append(errs, domain.FieldError{Field: "email", Message: "invalid address"})
	} else {
		sub.Email = addr.Address
	}
	if sub.LogoURL == "" {
		errs = append(errs, domain.FieldError{Field: "logo", Message: "required"})
	}
	sub.TaxPercent = strings.TrimSpace(sub.TaxPercent)
	if _, err := strconv.ParseFloat(sub.TaxPercent, 64); err != nil {
		errs = append(errs, domain.FieldError{Field: "tax_percent", Message: "must be a number"})
	}

	if len(errs) > 0 {
		return sub, domain.NewValidationErrors(errs)
	}
	return sub, nil
}

// logoURL prefers an upload on a field labelled like a logo, then any upload,
// then the scalar fallback.
func logoURL(fields []domain.Field, fallback string) string {
	var anyUpload string
	for _, f := range fields {
		assets := f.Assets()
		if len(assets) == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(f.Label), "logo") {
			return strings.TrimSpace(assets[0].URL)
		}
		if anyUpload == "" {
			anyUpload = strings.TrimSpace(assets[0].URL)
		}
	}
	if anyUpload != "" {
		return anyUpload
	}
	return fallback
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
