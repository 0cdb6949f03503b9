package forms

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"reportforms/internal/config"
)

const defaultComposeURL = "https://mail.google.com/mail/"

var (
	ErrUnknownMailScenario = errors.New("unknown e-mail scenario")
	ErrInvalidCaseNumber   = errors.New("Número da OC inválido para cálculo da linha.")
)

// MailSubject builds the e-mail subject from raw field values. Unlike the
// document title the case number carries no year.
func MailSubject(values map[string]string) string {
	get := func(id string) string { return Upper(strings.TrimSpace(values[id])) }
	return strings.Join([]string{
		get("nOc"), ShortDate(values["date"]), get("linha"), get("coletivo"),
		get("ocorrencia"), get("logradouro"),
	}, " - ")
}

// Recipients expands a mail scenario into its address list.
func Recipients(cfg config.MailConfig, scenario string) ([]string, error) {
	groups, ok := cfg.Scenarios[scenario]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMailScenario, scenario)
	}
	var out []string
	for _, g := range groups {
		out = append(out, cfg.Groups[g]...)
	}
	return out, nil
}

// MailComposeURL returns the webmail compose link for a scenario.
func MailComposeURL(cfg config.MailConfig, scenario string, values map[string]string) (string, error) {
	to, err := Recipients(cfg, scenario)
	if err != nil {
		return "", err
	}
	base := cfg.ComposeURL
	if base == "" {
		base = defaultComposeURL
	}
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("?view=cm&fs=1&tf=1")
	b.WriteString("&to=" + joinEscaped(to))
	b.WriteString("&cc=" + joinEscaped(cfg.CC))
	b.WriteString("&su=" + url.QueryEscape(MailSubject(values)))
	b.WriteString("&body=")
	return b.String(), nil
}

func joinEscaped(addrs []string) string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = url.QueryEscape(a)
	}
	return strings.Join(out, ",")
}

// SheetRow maps a case number to its spreadsheet row: the numeric part
// after the app prefix, plus two header rows.
func SheetRow(prefix, caseNumber string) (int, error) {
	raw := strings.TrimSpace(strings.Replace(Upper(caseNumber), prefix, "", 1))
	end := 0
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, ErrInvalidCaseNumber
	}
	n, err := strconv.Atoi(raw[:end])
	if err != nil {
		return 0, ErrInvalidCaseNumber
	}
	return n + 2, nil
}

// SheetURL links to the summary spreadsheet at the case's row.
func SheetURL(cfg config.SheetConfig, prefix, caseNumber string) (string, error) {
	row, err := SheetRow(prefix, caseNumber)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%s&range=B%d", cfg.ID, cfg.GID, row), nil
}
