package domain

import "context"

type Alert struct {
	From    string
	To      string
	Subject string
	Body    string
}

type Alerter interface {
	SendAlert(ctx context.Context, a Alert) error
}

// SecretResolver turns a configured secret reference into its value.
type SecretResolver interface {
	Resolve(ref string) (string, error)
}
