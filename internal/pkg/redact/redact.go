// redact маскирует персональные данные и секреты перед записью в лог.
package redact

import "strings"

// Email оставляет первые две руны локальной части и домен.
func Email(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***"
	}

	r := []rune(local)
	if len(r) > 2 {
		return string(r[:2]) + "***@" + domain
	}

	return "***@" + domain
}

// Username оставляет только первую руну.
func Username(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return "***"
	}

	return string(r[:1]) + "***"
}

// Bearer маскирует значение заголовка Authorization, сохраняя схему.
func Bearer(header string) string {
	if header == "" {
		return ""
	}

	scheme, _, ok := strings.Cut(header, " ")
	if !ok {
		return Token()
	}

	return scheme + " " + Token()
}

// Token - заглушка вместо значения токена.
func Token() string { return "[REDACTED_TOKEN]" }
