package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced by the backup pipeline wraps exactly one
// of these so callers can branch with errors.Is.
var (
	ErrConnectivity   = errors.New("connectivity error")
	ErrValidation     = errors.New("validation error")
	ErrArchive        = errors.New("archive error")
	ErrRemoteTransfer = errors.New("remote transfer error")
	ErrNotification   = errors.New("notification error")
)

func ConnectivityError(op string, err error) error {
	return wrapKind(op, ErrConnectivity, err)
}

func ValidationError(op string, err error) error {
	return wrapKind(op, ErrValidation, err)
}

func ArchiveError(op string, err error) error {
	return wrapKind(op, ErrArchive, err)
}

func RemoteTransferError(op string, err error) error {
	return wrapKind(op, ErrRemoteTransfer, err)
}

func NotificationError(op string, err error) error {
	return wrapKind(op, ErrNotification, err)
}

func wrapKind(op string, kind, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
